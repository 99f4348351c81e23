package app

import (
	"context"
	"fmt"
	"strings"

	"autoeden/internal/util"
	"autoeden/pkg/auth"
	"autoeden/pkg/domain"
)

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Register creates an account with default notification preferences.
// The first account on a fresh install becomes the admin.
func (a *App) Register(ctx context.Context, username, email, password string) (domain.User, TokenPair, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	fields := domain.FieldErrors{}
	if len(username) < 3 {
		fields["username"] = "username must be at least 3 characters"
	}
	if !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if len(fields) > 0 {
		return domain.User{}, TokenPair{}, fields
	}

	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, TokenPair{}, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, TokenPair{}, domain.FieldErrors{"password": err.Error()}
	}

	role := domain.RoleUser
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}

	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("save user: %w", err)
	}
	if err := a.store.SavePreference(domain.DefaultNotificationPreference(user.ID)); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("save preferences: %w", err)
	}
	if err := a.store.SaveProfile(domain.Profile{UserID: user.ID, CreatedAt: now, UpdatedAt: now}); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("save profile: %w", err)
	}

	a.bus.Publish(ctx, UserRegistered{User: user})

	pair, err := a.issueTokens(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Login validates credentials and issues a token pair.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(password, user.PasswordHash); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if user.Status != domain.StatusActive {
		return domain.User{}, TokenPair{}, ErrForbidden
	}
	pair, err := a.issueTokens(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates the refresh token and issues a fresh access token.
func (a *App) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, newToken, err := a.refresh.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || user.Status != domain.StatusActive {
		_ = a.refresh.DeleteToken(newToken)
		return TokenPair{}, ErrInvalidCredentials
	}
	access, err := a.tokens.Issue(user.ID, string(user.Role), a.now())
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: newToken,
		ExpiresIn:    int64(a.tokens.TTL().Seconds()),
	}, nil
}

// Logout revokes a refresh token.
func (a *App) Logout(ctx context.Context, refreshToken string) error {
	return a.refresh.DeleteToken(refreshToken)
}

func (a *App) issueTokens(user domain.User) (TokenPair, error) {
	access, err := a.tokens.Issue(user.ID, string(user.Role), a.now())
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := a.refresh.NewToken(user.ID, a.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(a.tokens.TTL().Seconds()),
	}, nil
}

// GetUser returns an account by ID.
func (a *App) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// AdminListUsers returns every account, oldest first.
func (a *App) AdminListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetUserStatus disables or re-enables an account. Disabling revokes access
// on the next token check; admins cannot disable themselves.
func (a *App) SetUserStatus(ctx context.Context, admin domain.User, userID string, status domain.UserStatus) (domain.User, error) {
	switch status {
	case domain.StatusActive, domain.StatusDisabled:
	default:
		return domain.User{}, domain.FieldErrors{"status": "status must be active or disabled"}
	}
	if userID == admin.ID {
		return domain.User{}, ErrForbidden
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	user.Status = status
	user.UpdatedAt = a.now()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// GetProfile returns the user's profile, creating an empty one if missing.
func (a *App) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !ok {
		return domain.Profile{UserID: userID}, nil
	}
	return profile, nil
}

// ProfileUpdate carries editable profile fields.
type ProfileUpdate struct {
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UpdateProfile stores editable profile fields.
func (a *App) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (domain.Profile, error) {
	profile, err := a.GetProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	now := a.now()
	profile.Phone = strings.TrimSpace(update.Phone)
	profile.FirstName = strings.TrimSpace(update.FirstName)
	profile.LastName = strings.TrimSpace(update.LastName)
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// GetPreferences returns notification channel opt-ins, defaulting when unset.
func (a *App) GetPreferences(ctx context.Context, userID string) (domain.NotificationPreference, error) {
	pref, ok, err := a.store.GetPreference(userID)
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("lookup preferences: %w", err)
	}
	if !ok {
		return domain.DefaultNotificationPreference(userID), nil
	}
	return pref, nil
}

// UpdatePreferences stores notification channel opt-ins.
func (a *App) UpdatePreferences(ctx context.Context, userID string, pref domain.NotificationPreference) (domain.NotificationPreference, error) {
	pref.UserID = userID
	if err := a.store.SavePreference(pref); err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("save preferences: %w", err)
	}
	return pref, nil
}
