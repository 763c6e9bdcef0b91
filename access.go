// access.go gates edit mode and the documents section behind the two secrets
package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

// Scope is an independent permission domain with its own secret and lock
// state: site-wide editing, or visibility of the documents section.
type Scope string

const (
	ScopeAdmin Scope = "admin"
	ScopeDocs  Scope = "docs"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAdmin:
		return ScopeAdmin, nil
	case ScopeDocs:
		return ScopeDocs, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrValidation, s)
}

// AccessState is the lock state of one scope.
type AccessState int

const (
	StateLocked AccessState = iota
	StatePromptingPassword
	StateGranted
)

var (
	ErrInvalidPassword = errors.New("invalid credentials")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrResetExpired    = errors.New("reset session not found or expired")
)

// The reset flow is a scripted simulation: nothing is ever sent, and the
// verification code is fixed. Documented behavior, not a security measure.
const (
	magicResetCode = "123456"
	recoveryEmail  = "mdsafiulla727@gmail.com"
)

const resetSessionTTL = 15 * time.Minute

type resetStep string

const (
	stepVerify resetStep = "verify"
	stepReset  resetStep = "reset"
)

type resetSession struct {
	Scope Scope
	Step  resetStep
}

// AccessController runs the per-scope lock state machines and the simulated
// forgot-password flow. Successful unlocks are carried as scoped JWTs so the
// stateless HTTP handlers can check them.
type AccessController struct {
	store     *Store
	jwtSecret []byte

	mu     sync.Mutex
	states map[Scope]AccessState

	resets *cache.Cache
}

func NewAccessController(store *Store, jwtSecret []byte) *AccessController {
	return &AccessController{
		store:     store,
		jwtSecret: jwtSecret,
		states:    map[Scope]AccessState{ScopeAdmin: StateLocked, ScopeDocs: StateLocked},
		resets:    cache.New(resetSessionTTL, 2*resetSessionTTL),
	}
}

// State reports the current lock state of a scope.
func (a *AccessController) State(scope Scope) AccessState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.states[scope]
}

// Prompt moves a locked scope to PromptingPassword (the password dialog).
func (a *AccessController) Prompt(scope Scope) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[scope] = StatePromptingPassword
}

// Unlock checks the submitted password against the stored secret for the
// scope. Success grants the scope and returns a session token; anything else
// returns the scope to Locked and reports ErrInvalidPassword.
func (a *AccessController) Unlock(scope Scope, password string) (string, error) {
	secret := a.secretFor(scope, a.store.Load())

	a.mu.Lock()
	defer a.mu.Unlock()
	if !verifySecret(secret, password) {
		a.states[scope] = StateLocked
		return "", ErrInvalidPassword
	}

	token, err := a.issueToken(scope)
	if err != nil {
		a.states[scope] = StateLocked
		return "", err
	}
	a.states[scope] = StateGranted
	return token, nil
}

// Logout returns the scope to Locked. Tokens already issued simply expire.
func (a *AccessController) Logout(scope Scope) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[scope] = StateLocked
}

// BeginReset starts the 3-step forgot-password flow for a scope. It returns
// the session id and the mailto link the UI shows; clicking the link is
// intercepted client-side, so composing it is the whole "send".
func (a *AccessController) BeginReset(scope Scope) (id string, mailto string) {
	id = uuid.NewString()
	a.resets.Set(id, &resetSession{Scope: scope, Step: stepVerify}, cache.DefaultExpiration)

	section := "Admin"
	if scope == ScopeDocs {
		section = "Document"
	}
	subject := fmt.Sprintf("Password Reset Request for Portfolio (%s Section)", section)
	mailto = "mailto:" + recoveryEmail + "?subject=" + url.PathEscape(subject)
	return id, mailto
}

// VerifyResetCode advances a session from Verify to Reset when the fixed
// code matches. A mismatch leaves the session in Verify.
func (a *AccessController) VerifyResetCode(id, code string) error {
	sess, err := a.resetSessionByID(id)
	if err != nil {
		return err
	}
	if code != magicResetCode {
		return ErrInvalidCode
	}
	sess.Step = stepReset
	a.resets.Set(id, sess, cache.DefaultExpiration)
	return nil
}

// CompleteReset finishes the flow: both entries must be non-empty and equal,
// otherwise the session stays in Reset and the stored secret is untouched.
// Success writes the new secret for the session's scope and locks the scope.
func (a *AccessController) CompleteReset(id, newPassword, confirmPassword string) error {
	sess, err := a.resetSessionByID(id)
	if err != nil {
		return err
	}
	if sess.Step != stepReset {
		return fmt.Errorf("%w: verification code not confirmed", ErrValidation)
	}
	if newPassword == "" || confirmPassword == "" {
		return fmt.Errorf("%w: please fill out both password fields", ErrValidation)
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	tree := a.store.Load()
	if sess.Scope == ScopeDocs {
		tree.Credentials.DocsPassword = newPassword
	} else {
		tree.Credentials.AdminPassword = newPassword
	}
	if err := a.store.Save(tree); err != nil {
		return err
	}

	a.resets.Delete(id)
	a.Logout(sess.Scope)
	return nil
}

func (a *AccessController) resetSessionByID(id string) (*resetSession, error) {
	v, found := a.resets.Get(id)
	if !found {
		return nil, ErrResetExpired
	}
	return v.(*resetSession), nil
}

func (a *AccessController) secretFor(scope Scope, t *ContentTree) string {
	if scope == ScopeDocs {
		return t.Credentials.DocsPassword
	}
	return t.Credentials.AdminPassword
}

// verifySecret compares a submitted password with the stored secret. The
// stored value is plain text by default; a bcrypt hash is honored too, so
// hardening the secrets is a data change only.
func verifySecret(stored, candidate string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return stored == candidate
}

func (a *AccessController) issueToken(scope Scope) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": string(scope),
		"jti":   uuid.NewString(),
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return signed, nil
}

// TokenScope validates a session token and returns the scope it grants.
func (a *AccessController) TokenScope(tokenString string) (Scope, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidPassword
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidPassword
	}
	scope, _ := claims["scope"].(string)
	return ParseScope(scope)
}
