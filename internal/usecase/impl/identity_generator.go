package impl

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strconv"
	"sync"
	"time"

	domainerrors "censo/internal/domain/errors"

	"github.com/pkg/errors"
)

const identityRandomBytes = 5 // 10 hex characters

// identityExistsFunc reports whether an identification number is already taken.
type identityExistsFunc func(ctx context.Context, candidate string) (bool, error)

// identityGenerator builds placeholder identification numbers for members who
// were surveyed without one: <TAG>-<unix millis base36>-<10 hex>-<attempt>.
type identityGenerator struct {
	maxAttempts int
	now         func() time.Time

	mu     sync.Mutex
	random io.Reader
}

func newIdentityGenerator(maxAttempts int, random io.Reader, now func() time.Time) *identityGenerator {
	if random == nil {
		random = rand.Reader
	}
	if now == nil {
		now = time.Now
	}

	return &identityGenerator{
		maxAttempts: maxAttempts,
		now:         now,
		random:      random,
	}
}

// Generate returns the first candidate that exists reports as free.
// It fails with ErrIdentityExhausted once the attempt budget is spent.
func (g *identityGenerator) Generate(ctx context.Context, tag string, exists identityExistsFunc) (string, error) {
	token, err := g.token()
	if err != nil {
		return "", err
	}
	stamp := strconv.FormatInt(g.now().UnixMilli(), 36)

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		candidate := tag + "-" + stamp + "-" + token + "-" + strconv.Itoa(attempt)

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "failed to check identification number")
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", errors.Wrapf(domainerrors.ErrIdentityExhausted, "no free %s identifier after %d attempts", tag, g.maxAttempts)
}

func (g *identityGenerator) token() (string, error) {
	buf := make([]byte, identityRandomBytes)

	g.mu.Lock()
	_, err := io.ReadFull(g.random, buf)
	g.mu.Unlock()
	if err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return hex.EncodeToString(buf), nil
}
