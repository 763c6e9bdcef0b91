package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAccess(t *testing.T) (*AccessController, *Store) {
	t.Helper()
	s := newTestStore(t)
	return NewAccessController(s, []byte("test-secret")), s
}

func TestUnlockAdminWithCorrectPassword(t *testing.T) {
	ac, _ := newTestAccess(t)

	require.Equal(t, StateLocked, ac.State(ScopeAdmin))
	ac.Prompt(ScopeAdmin)
	require.Equal(t, StatePromptingPassword, ac.State(ScopeAdmin))

	token, err := ac.Unlock(ScopeAdmin, "admin123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, StateGranted, ac.State(ScopeAdmin))

	scope, err := ac.TokenScope(token)
	require.NoError(t, err)
	require.Equal(t, ScopeAdmin, scope)
}

func TestUnlockWrongPasswordStaysLocked(t *testing.T) {
	ac, _ := newTestAccess(t)

	ac.Prompt(ScopeAdmin)
	_, err := ac.Unlock(ScopeAdmin, "not-the-password")
	require.ErrorIs(t, err, ErrInvalidPassword)
	require.Equal(t, StateLocked, ac.State(ScopeAdmin))
}

func TestScopesAreIndependent(t *testing.T) {
	ac, _ := newTestAccess(t)

	token, err := ac.Unlock(ScopeDocs, "docs123")
	require.NoError(t, err)
	require.Equal(t, StateGranted, ac.State(ScopeDocs))
	require.Equal(t, StateLocked, ac.State(ScopeAdmin))

	scope, err := ac.TokenScope(token)
	require.NoError(t, err)
	require.Equal(t, ScopeDocs, scope)
}

func TestLogoutReturnsToLocked(t *testing.T) {
	ac, _ := newTestAccess(t)

	_, err := ac.Unlock(ScopeAdmin, "admin123")
	require.NoError(t, err)
	ac.Logout(ScopeAdmin)
	require.Equal(t, StateLocked, ac.State(ScopeAdmin))
}

func TestTokenScopeRejectsGarbage(t *testing.T) {
	ac, _ := newTestAccess(t)
	_, err := ac.TokenScope("not-a-token")
	require.Error(t, err)
}

func TestTokenFromDifferentSecretRejected(t *testing.T) {
	ac1, _ := newTestAccess(t)
	s2 := newTestStore(t)
	ac2 := NewAccessController(s2, []byte("other-secret"))

	token, err := ac1.Unlock(ScopeAdmin, "admin123")
	require.NoError(t, err)
	_, err = ac2.TokenScope(token)
	require.Error(t, err)
}

func TestUnlockWithBcryptStoredSecret(t *testing.T) {
	ac, s := newTestAccess(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	tree := s.Load()
	tree.Credentials.AdminPassword = string(hash)
	require.NoError(t, s.Save(tree))

	_, err = ac.Unlock(ScopeAdmin, "s3cret")
	require.NoError(t, err)

	_, err = ac.Unlock(ScopeAdmin, "wrong")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestResetFlowHappyPath(t *testing.T) {
	ac, s := newTestAccess(t)

	id, mailto := ac.BeginReset(ScopeAdmin)
	require.NotEmpty(t, id)
	require.Contains(t, mailto, "mailto:"+recoveryEmail)
	require.Contains(t, mailto, "Admin")

	require.NoError(t, ac.VerifyResetCode(id, "123456"))
	require.NoError(t, ac.CompleteReset(id, "brand-new", "brand-new"))

	require.Equal(t, "brand-new", s.Load().Credentials.AdminPassword)
	require.Equal(t, StateLocked, ac.State(ScopeAdmin))

	// the session is single-use
	require.ErrorIs(t, ac.VerifyResetCode(id, "123456"), ErrResetExpired)

	_, err := ac.Unlock(ScopeAdmin, "brand-new")
	require.NoError(t, err)
}

func TestResetFlowWrongCodeStaysInVerify(t *testing.T) {
	ac, s := newTestAccess(t)

	id, _ := ac.BeginReset(ScopeAdmin)
	require.ErrorIs(t, ac.VerifyResetCode(id, "654321"), ErrInvalidCode)

	// still in Verify: completing is refused and the secret is unchanged
	err := ac.CompleteReset(id, "x", "x")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "admin123", s.Load().Credentials.AdminPassword)

	// the right code still works after a failed attempt
	require.NoError(t, ac.VerifyResetCode(id, "123456"))
}

func TestResetFlowPasswordValidation(t *testing.T) {
	ac, s := newTestAccess(t)

	id, _ := ac.BeginReset(ScopeDocs)
	require.NoError(t, ac.VerifyResetCode(id, "123456"))

	require.ErrorIs(t, ac.CompleteReset(id, "one", "two"), ErrValidation)
	require.ErrorIs(t, ac.CompleteReset(id, "", ""), ErrValidation)
	require.Equal(t, "docs123", s.Load().Credentials.DocsPassword)

	require.NoError(t, ac.CompleteReset(id, "fresh", "fresh"))
	require.Equal(t, "fresh", s.Load().Credentials.DocsPassword)
}

func TestResetFlowDocsSubject(t *testing.T) {
	ac, _ := newTestAccess(t)
	_, mailto := ac.BeginReset(ScopeDocs)
	require.Contains(t, mailto, "Document")
}

func TestResetFlowUnknownSession(t *testing.T) {
	ac, _ := newTestAccess(t)
	require.ErrorIs(t, ac.VerifyResetCode("missing", "123456"), ErrResetExpired)
	require.ErrorIs(t, ac.CompleteReset("missing", "a", "a"), ErrResetExpired)
}
