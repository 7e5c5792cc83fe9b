package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testParams)
	require.NoError(t, err)
	return h
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	enc, err := h.Hash("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, h.Verify("secret", enc))
	assert.False(t, h.Verify("Secret", enc))
	assert.False(t, h.Verify("", enc))
}

func TestPasswordHasher_SaltedPerCall(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same", a))
	assert.True(t, h.Verify("same", b))
}

func TestPasswordHasher_VerifiesOtherParams(t *testing.T) {
	t.Parallel()

	old, err := NewPasswordHasher(Argon2Params{Time: 2, Memory: 4 * 1024, Threads: 2, KeyLen: 16, SaltLen: 8})
	require.NoError(t, err)
	enc, err := old.Hash("pw")
	require.NoError(t, err)

	assert.True(t, newTestHasher(t).Verify("pw", enc))
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	current, err := h.Hash("pw")
	require.NoError(t, err)
	assert.False(t, h.NeedsRehash(current))
	assert.False(t, h.NeedsRehash(h.DummyHash()))

	for _, p := range []Argon2Params{
		{Time: 2, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
		{Time: 1, Memory: 4 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
		{Time: 1, Memory: 8 * 1024, Threads: 2, KeyLen: 32, SaltLen: 16},
		{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 16},
		{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 8},
	} {
		other, err := NewPasswordHasher(p)
		require.NoError(t, err)
		enc, err := other.Hash("pw")
		require.NoError(t, err)
		assert.True(t, h.NeedsRehash(enc), "%+v", p)
	}

	assert.True(t, h.NeedsRehash("not-a-hash"))
}

func TestPasswordHasher_Malformed(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	good, err := h.Hash("pw")
	require.NoError(t, err)
	parts := strings.Split(good, "$")

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not-a-hash",
		"bcrypt":      "$2a$10$abcdefghijklmnopqrstuv",
		"argon2i":     strings.Replace(good, "argon2id", "argon2i", 1),
		"bad version": strings.Replace(good, "v=19", "v=16", 1),
		"bad params":  "$argon2id$v=19$m=x,t=1,p=1$" + parts[4] + "$" + parts[5],
		"zero memory": "$argon2id$v=19$m=0,t=1,p=1$" + parts[4] + "$" + parts[5],
		"huge memory": "$argon2id$v=19$m=4294967295,t=1,p=1$" + parts[4] + "$" + parts[5],
		"bad salt":    "$argon2id$v=19$m=8192,t=1,p=1$!!!$" + parts[5],
		"empty key":   "$argon2id$v=19$m=8192,t=1,p=1$" + parts[4] + "$",
		"extra field": good + "$x",
	}

	for name, enc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, h.Verify("pw", enc))
			})
		})
	}
}

func TestPasswordHasher_Dummy(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	assert.NotEmpty(t, h.DummyHash())
	assert.False(t, h.Verify("anything", h.DummyHash()))
	assert.NotPanics(t, func() { h.VerifyDummy("anything") })
}

func TestNewPasswordHasher_InvalidParams(t *testing.T) {
	t.Parallel()

	_, err := NewPasswordHasher(Argon2Params{})
	assert.Error(t, err)

	p := testParams
	p.SaltLen = 0
	_, err = NewPasswordHasher(p)
	assert.Error(t, err)
}

// Real verification and the dummy path should cost about the same.
func TestPasswordHasher_TimingParity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	h := newTestHasher(t)
	enc, err := h.Hash("correct horse")
	require.NoError(t, err)

	const rounds = 20
	measure := func(fn func()) time.Duration {
		start := time.Now()
		for i := 0; i < rounds; i++ {
			fn()
		}
		return time.Since(start)
	}

	verified := measure(func() { h.Verify("wrong", enc) })
	dummy := measure(func() { h.VerifyDummy("wrong") })
	malformed := measure(func() { h.Verify("wrong", "garbage") })

	ratio := func(a, b time.Duration) float64 { return float64(a) / float64(b) }
	assert.InDelta(t, 1.0, ratio(dummy, verified), 0.5, "dummy=%s verified=%s", dummy, verified)
	assert.InDelta(t, 1.0, ratio(malformed, verified), 0.5, "malformed=%s verified=%s", malformed, verified)
}
