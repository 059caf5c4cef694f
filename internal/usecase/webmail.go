package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/user/tenant-provisioner/internal/domain"
	"github.com/user/tenant-provisioner/internal/vault"
)

// LaunchMode says how the client should open webmail.
type LaunchMode string

const (
	// LaunchSSO carries a short-lived credential token for automatic login.
	LaunchSSO LaunchMode = "sso"
	// LaunchManual means no stored credential was usable; the user logs in
	// themselves.
	LaunchManual LaunchMode = "manual"
)

// LaunchResult is what the API returns for a webmail session request.
type LaunchResult struct {
	Mode     LaunchMode `json:"mode"`
	Token    string     `json:"token,omitempty"`
	LoginURL string     `json:"login_url"`
}

// WebmailLaunchUseCase builds passwordless webmail handoffs: it decrypts the
// stored mailbox credential and wraps it in a token that expires before a
// leaked link is worth anything.
type WebmailLaunchUseCase struct {
	userRepo domain.UserRepository
	vault    *vault.Vault
	issuer   *vault.HandoffIssuer
	loginURL string
	logger   *slog.Logger
}

func NewWebmailLaunchUseCase(userRepo domain.UserRepository, v *vault.Vault, issuer *vault.HandoffIssuer, loginURL string, logger *slog.Logger) *WebmailLaunchUseCase {
	return &WebmailLaunchUseCase{
		userRepo: userRepo,
		vault:    v,
		issuer:   issuer,
		loginURL: loginURL,
		logger:   logger.With("component", "webmail_launch"),
	}
}

// Launch returns an SSO handoff when the stored credential decrypts cleanly,
// and degrades to a manual login otherwise. A corrupt vault entry must never
// lock the user out of their mailbox.
func (uc *WebmailLaunchUseCase) Launch(ctx context.Context, userID uuid.UUID) (*LaunchResult, error) {
	user, err := uc.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Removed() {
		return nil, domain.ErrNotFound
	}
	if user.AccountStatus != domain.AccountActive {
		return nil, domain.Validationf("mailbox for %s is not active", user.Email)
	}

	if user.EncryptedPassword == "" {
		return &LaunchResult{Mode: LaunchManual, LoginURL: uc.loginURL}, nil
	}

	password, err := uc.vault.Decrypt(user.EncryptedPassword)
	if err != nil {
		uc.logger.Warn("stored credential failed to decrypt, falling back to manual login",
			"user_id", userID, "error", err)
		return &LaunchResult{Mode: LaunchManual, LoginURL: uc.loginURL}, nil
	}

	token, err := uc.issuer.Issue(user.Email, password)
	if err != nil {
		return nil, err
	}

	if err := uc.userRepo.TouchWebmailLogin(ctx, userID); err != nil {
		uc.logger.Warn("failed to record webmail login", "user_id", userID, "error", err)
	}

	return &LaunchResult{Mode: LaunchSSO, Token: token, LoginURL: uc.loginURL}, nil
}

// RedeemResult is the credential bundle handed to the webmail front-end in
// exchange for a handoff token.
type RedeemResult struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Redeem exchanges a handoff token for the mailbox credentials it carries.
// Expired or tampered tokens are rejected; the token is single-window by
// expiry only, so the front-end must redeem promptly.
func (uc *WebmailLaunchUseCase) Redeem(ctx context.Context, token string) (*RedeemResult, error) {
	claims, err := uc.issuer.Verify(token)
	if err != nil {
		uc.logger.Warn("rejected webmail handoff token", "error", err)
		return nil, domain.Validationf("handoff token is expired or invalid")
	}
	return &RedeemResult{Email: claims.Email, Password: claims.Password}, nil
}
