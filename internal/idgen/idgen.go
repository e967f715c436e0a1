package idgen

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

const (
	KindULID   = "ulid"
	KindKSUID  = "ksuid"
	KindUUID   = "uuid"
	KindNanoID = "nanoid"
	KindCUID2  = "cuid2"

	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultSecretSize     = 32
)

// Generator produces string identifiers.
type Generator interface {
	Generate() (string, error)
}

// NewMessageIDGenerator returns a time-sortable generator for message ids.
func NewMessageIDGenerator(kind string) (Generator, error) {
	switch kind {
	case KindULID, "":
		return NewULIDGenerator(), nil
	case KindKSUID:
		return KSUIDGenerator{}, nil
	case KindUUID:
		return UUIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unsupported message id kind: %s", kind)
	}
}

// NewSecretGenerator returns a generator for visitor secrets.
func NewSecretGenerator(kind string, size int) (Generator, error) {
	if size <= 0 {
		size = DefaultSecretSize
	}
	switch kind {
	case KindNanoID, "":
		return NewNanoIDGenerator(size, DefaultNanoIDAlphabet)
	case KindCUID2:
		return NewCUID2Generator(size)
	default:
		return nil, fmt.Errorf("unsupported secret kind: %s", kind)
	}
}

// ULIDGenerator yields ULIDs that are strictly increasing within the process.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

type KSUIDGenerator struct{}

func (KSUIDGenerator) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}

type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// NanoIDGenerator yields random strings over a fixed alphabet.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

func NewNanoIDGenerator(size int, alphabet string) (*NanoIDGenerator, error) {
	if size < 16 || size > 64 {
		return nil, fmt.Errorf("nanoid size must be between 16 and 64, got %d", size)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("nanoid alphabet must have at least 2 characters, got %d", len(alphabet))
	}
	return &NanoIDGenerator{size: size, alphabet: alphabet}, nil
}

func (g *NanoIDGenerator) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return id, nil
}

type CUID2Generator struct {
	generate func() string
}

func NewCUID2Generator(length int) (*CUID2Generator, error) {
	if length < 16 || length > 32 {
		return nil, fmt.Errorf("cuid2 length must be between 16 and 32, got %d", length)
	}
	gen, err := cuid2.Init(cuid2.WithLength(length))
	if err != nil {
		return nil, fmt.Errorf("failed to init CUID2 generator: %w", err)
	}
	return &CUID2Generator{generate: gen}, nil
}

func (g *CUID2Generator) Generate() (string, error) {
	return g.generate(), nil
}

// NewRoomID returns a random UUID for a new room.
func NewRoomID() string {
	return uuid.NewString()
}
