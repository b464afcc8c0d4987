package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	registered []string
	failAfter  int // fail once this many registrations have happened; 0 = never
}

func (f *fakeRegistrar) Register(ctx context.Context, email, displayName string) (string, error) {
	if f.failAfter > 0 && len(f.registered) >= f.failAfter {
		return "", errors.New("registration rejected")
	}
	f.registered = append(f.registered, email)
	return fmt.Sprintf("voter-%d", len(f.registered)), nil
}

func TestLoadMissingPoolStartsEmpty(t *testing.T) {
	pool, err := Load(t.TempDir(), "voters.test", &fakeRegistrar{})
	require.NoError(t, err)
	assert.Zero(t, pool.Size())
}

func TestEnsureSizeGrowsAndPersists(t *testing.T) {
	dir := t.TempDir()
	reg := &fakeRegistrar{}

	pool, err := Load(dir, "voters.test", reg)
	require.NoError(t, err)
	require.NoError(t, pool.EnsureSize(context.Background(), 5))
	assert.Equal(t, 5, pool.Size())
	assert.Len(t, reg.registered, 5)

	// A fresh load sees the same pool without re-registering anyone.
	reloaded, err := Load(dir, "voters.test", &fakeRegistrar{})
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Size())
	assert.Equal(t, pool.Voters(), reloaded.Voters())
}

func TestEnsureSizeIsLazy(t *testing.T) {
	reg := &fakeRegistrar{}
	pool, err := Load(t.TempDir(), "voters.test", reg)
	require.NoError(t, err)

	require.NoError(t, pool.EnsureSize(context.Background(), 3))
	require.NoError(t, pool.EnsureSize(context.Background(), 3))
	require.NoError(t, pool.EnsureSize(context.Background(), 2))
	assert.Len(t, reg.registered, 3, "pool never shrinks and never over-grows")

	require.NoError(t, pool.EnsureSize(context.Background(), 7))
	assert.Equal(t, 7, pool.Size())
	assert.Len(t, reg.registered, 7)
}

func TestEnsureSizeZero(t *testing.T) {
	reg := &fakeRegistrar{}
	pool, err := Load(t.TempDir(), "voters.test", reg)
	require.NoError(t, err)

	require.NoError(t, pool.EnsureSize(context.Background(), 0))
	assert.Zero(t, pool.Size())
	assert.Empty(t, reg.registered)
}

func TestEnsureSizeRegistrationFailure(t *testing.T) {
	reg := &fakeRegistrar{failAfter: 2}
	pool, err := Load(t.TempDir(), "voters.test", reg)
	require.NoError(t, err)

	err = pool.EnsureSize(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, 2, pool.Size(), "successfully registered voters stay in the pool")
}

func TestVoterEmailsUseDomain(t *testing.T) {
	pool, err := Load(t.TempDir(), "voters.test", &fakeRegistrar{})
	require.NoError(t, err)
	require.NoError(t, pool.EnsureSize(context.Background(), 10))

	seen := make(map[string]bool)
	for _, v := range pool.Voters() {
		assert.True(t, strings.HasSuffix(v.Email, "@voters.test"), "email %s", v.Email)
		assert.NotEmpty(t, v.DisplayName)
		assert.NotEmpty(t, v.ID)
		assert.False(t, seen[v.Email], "duplicate email %s", v.Email)
		seen[v.Email] = true
	}
}

func TestPoolOrderStableAcrossReload(t *testing.T) {
	dir := t.TempDir()
	pool, err := Load(dir, "voters.test", &fakeRegistrar{})
	require.NoError(t, err)
	require.NoError(t, pool.EnsureSize(context.Background(), 6))

	first := make([]string, 0, 6)
	for _, v := range pool.Voters() {
		first = append(first, v.ID)
	}

	reloaded, err := Load(dir, "voters.test", nil)
	require.NoError(t, err)
	second := make([]string, 0, 6)
	for _, v := range reloaded.Voters() {
		second = append(second, v.ID)
	}
	assert.Equal(t, first, second, "persisted order is the shuffle input and must not drift")
}
