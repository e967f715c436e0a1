package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

// GormRoomDirectory implements RoomDirectory using GORM.
type GormRoomDirectory struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRoomDirectory creates a new GORM-based room directory.
func NewGormRoomDirectory(db *gorm.DB) *GormRoomDirectory {
	return &GormRoomDirectory{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Models lists the tables owned by the directory, for migration.
func Models() []interface{} {
	return []interface{}{&domain.RoomModel{}, &domain.MessageModel{}}
}

func (r *GormRoomDirectory) FindActiveRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return r.findRoom(ctx, roomID, true)
}

func (r *GormRoomDirectory) FindRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return r.findRoom(ctx, roomID, false)
}

func (r *GormRoomDirectory) findRoom(ctx context.Context, roomID string, activeOnly bool) (*domain.Room, error) {
	l := log.Ctx(ctx)

	if roomID == "" {
		return nil, ErrRoomNotFound
	}

	q := r.db.WithContext(ctx).Where("id = ?", roomID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var model domain.RoomModel
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get room by id")
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormRoomDirectory) CreateRoom(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	now := r.now()
	room.Active = true
	room.CreatedAt = now
	room.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(domain.RoomToModel(room)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return ErrDuplicateSecret
		}
		l.Error().Err(err).Msg("failed to create room in db")
		return err
	}

	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

func (r *GormRoomDirectory) AppendMessage(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		createdAt, err := r.nextTimestamp(tx, msg.RoomID)
		if err != nil {
			return err
		}
		msg.CreatedAt = createdAt

		res := tx.Model(&domain.RoomModel{}).
			Where("id = ? AND active = ?", msg.RoomID, true).
			UpdateColumn("updated_at", msg.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}

		return tx.Create(domain.MessageToModel(msg)).Error
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("failed to append message")
		}
		return err
	}
	return nil
}

// nextTimestamp keeps created_at strictly increasing within a room even when
// two appends land in the same clock tick.
func (r *GormRoomDirectory) nextTimestamp(tx *gorm.DB, roomID string) (time.Time, error) {
	now := r.now()

	var last domain.MessageModel
	err := tx.Select("created_at").
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return time.Time{}, err
	}
	if !last.CreatedAt.IsZero() && !now.After(last.CreatedAt) {
		now = last.CreatedAt.UTC().Add(time.Microsecond)
	}
	return now, nil
}

func (r *GormRoomDirectory) ListOwnerRooms(ctx context.Context, ownerID string, limit int) ([]domain.Room, error) {
	l := log.Ctx(ctx)

	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []domain.RoomModel
	if err := q.Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldUserID, ownerID).Msg("failed to list owner rooms")
		return nil, err
	}

	rooms := make([]domain.Room, len(models))
	for i := range models {
		rooms[i] = *models[i].ToDomain()
	}
	return rooms, nil
}

func (r *GormRoomDirectory) LastMessages(ctx context.Context, roomIDs []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&domain.MessageModel{}).
		Select("room_id, MAX(created_at) AS created_at").
		Where("room_id IN ?", roomIDs).
		Group("room_id")

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Joins("JOIN (?) AS latest ON latest.room_id = chat_messages.room_id AND latest.created_at = chat_messages.created_at", latest).
		Order("chat_messages.id").
		Find(&models).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int("rooms", len(roomIDs)).Msg("failed to load last messages")
		return nil, err
	}

	for i := range models {
		out[models[i].RoomID] = *models[i].ToDomain()
	}
	return out, nil
}

func (r *GormRoomDirectory) ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	q := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before.UTC())
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "created_at"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}})
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []domain.MessageModel
	if err := q.Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, err
	}

	msgs := make([]domain.Message, len(models))
	for i := range models {
		msgs[len(models)-1-i] = *models[i].ToDomain()
	}
	return msgs, nil
}

func (r *GormRoomDirectory) Deactivate(ctx context.Context, roomID string) error {
	l := log.Ctx(ctx)

	res := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ? AND active = ?", roomID, true).
		UpdateColumns(map[string]interface{}{
			"active":     false,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		l.Error().Err(res.Error).Str(log.FieldRoomID, roomID).Msg("failed to deactivate room")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	l.Debug().Str(log.FieldRoomID, roomID).Msg("room deactivated in db")
	return nil
}

func (r *GormRoomDirectory) DetachSender(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("sender_id = ?", userID).
		UpdateColumn("sender_id", nil)
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
