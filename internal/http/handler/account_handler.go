package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/middleware"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/response"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/service"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"
)

const (
	PathHome                 = "/"
	PathRegister             = "/register/"
	PathVerifyOTP            = "/verify-otp/"
	PathResendOTP            = "/resend-otp/"
	PathLogin                = "/login/"
	PathLogout               = "/logout/"
	PathPasswordReset        = "/password-reset/"
	PathPasswordResetDone    = "/password-reset/done/"
	PathPasswordResetConfirm = "/password-reset-confirm/"
	PathPasswordResetDoneAll = "/password-reset-complete/"
)

const (
	msgRegistered        = "Registration successful! Please check your email for OTP verification."
	msgDeliveryWarning   = "We could not send the verification email. Please request a new OTP."
	msgRegisterFirst     = "Please register first."
	msgSessionExpired    = "Session expired. Please register again."
	msgVerified          = "Email verified successfully! You can now login."
	msgInvalidOTP        = "Invalid or expired OTP."
	msgNoOTP             = "No valid OTP found."
	msgUserNotFound      = "User not found."
	msgNoSessionEmail    = "No email found in session."
	msgOTPResent         = "New OTP has been sent to your email."
	msgAlreadyVerified   = "Your account is already verified. Please log in."
	msgCooldown          = "Please wait %d seconds before requesting a new OTP."
	msgLoginSuccess      = "Login successful!"
	msgInvalidPassword   = "Invalid password. %d attempts remaining before account lockout."
	msgLockTriggered     = "Account locked for %d minutes due to too many failed attempts."
	msgLocked            = "Account is locked. Please try again after %d seconds."
	msgAccountNotFound   = "No account found with this email address."
	msgVerifyFirst       = "Please verify your email first."
	msgLoggedOut         = "You have been logged out."
	msgResetUnverified   = "Your account is not verified yet. Please complete the verification process first."
	msgResetSent         = "We've emailed you instructions for setting your password, if an account exists with the email you entered."
	msgResetInvalidToken = "The password reset link was invalid, possibly because it has already been used. Please request a new password reset."
	msgResetComplete     = "Your password has been set. You may go ahead and log in now."
)

// AccountHandler serves the registration, verification, login and password
// reset routes. Outcomes a browser would see as a page come back as JSON;
// redirects are 303s carrying the queued flash messages.
type AccountHandler struct {
	registration service.RegistrationServiceInterface
	reset        service.PasswordResetServiceInterface
	auth         service.AuthenticatorInterface
	sessions     session.Store
	jwtMgr       *security.JWTManager
	cookieMgr    *security.CookieManager
	accessTTL    time.Duration
	lockWindow   time.Duration
	logger       *slog.Logger
}

func NewAccountHandler(
	registration service.RegistrationServiceInterface,
	reset service.PasswordResetServiceInterface,
	auth service.AuthenticatorInterface,
	sessions session.Store,
	jwtMgr *security.JWTManager,
	cookieMgr *security.CookieManager,
	accessTTL time.Duration,
	lockWindow time.Duration,
	logger *slog.Logger,
) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		registration: registration,
		reset:        reset,
		auth:         auth,
		sessions:     sessions,
		jwtMgr:       jwtMgr,
		cookieMgr:    cookieMgr,
		accessTTL:    accessTTL,
		lockWindow:   lockWindow,
		logger:       logger,
	}
}

// Page renders the pending flash messages for a landing route.
func (h *AccountHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, map[string]any{})
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req registerRequest
	if !h.bind(w, r, &req) {
		status = "invalid"
		return
	}
	sid := h.sessionID(r)
	res, err := h.registration.Register(r.Context(), sid, service.RegisterInput{
		Email:           req.Email,
		FullName:        req.FullName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		status = "failure"
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			observability.Audit(r, observability.AuditInput{EventName: "account.register", TargetType: "user", Action: "register", Outcome: "rejected", Reason: "validation"})
			h.validationError(w, r, verr.Fields)
			return
		}
		h.internalError(w, r, "register", err)
		return
	}

	userID := strconv.FormatUint(uint64(res.User.ID), 10)
	observability.Audit(r, observability.AuditInput{EventName: "account.register", ActorUserID: userID, TargetType: "user", TargetID: userID, Action: "register", Outcome: "success"})
	h.flash(r, sid, session.LevelSuccess, msgRegistered)
	if !res.Delivered {
		h.flash(r, sid, session.LevelWarning, msgDeliveryWarning)
	}
	h.redirect(w, r, sid, PathVerifyOTP)
}

func (h *AccountHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(r)
	state, err := h.registration.VerifyPage(r.Context(), sid)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVerificationSessionMissing):
			h.flash(r, sid, session.LevelError, msgRegisterFirst)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrVerificationSessionExpired):
			h.flash(r, sid, session.LevelError, msgSessionExpired)
			h.redirect(w, r, sid, PathRegister)
		default:
			h.internalError(w, r, "verify_page", err)
		}
		return
	}
	data := map[string]any{
		"email":      state.Email,
		"expires_in": int(state.ExpiresIn / time.Second),
	}
	if cd, err := strconv.Atoi(r.URL.Query().Get("cooldown")); err == nil && cd > 0 {
		data["cooldown"] = cd
	}
	h.render(w, r, http.StatusOK, data)
}

func (h *AccountHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_otp", status, time.Since(start))
	}()

	var req verifyOTPRequest
	if !h.bind(w, r, &req) {
		status = "invalid"
		return
	}
	sid := h.sessionID(r)
	user, err := h.registration.Verify(r.Context(), sid, req.OTP)
	if err != nil {
		status = "failure"
		audit := observability.AuditInput{EventName: "account.verify", TargetType: "user", Action: "verify", Outcome: "rejected"}
		switch {
		case errors.Is(err, service.ErrVerificationSessionMissing):
			audit.Reason = "no_session"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgRegisterFirst)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrVerificationSessionExpired):
			audit.Reason = "session_expired"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgSessionExpired)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrUserNotFound):
			audit.Reason = "unknown_user"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgUserNotFound)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrNoActiveCode):
			audit.Reason = "no_code"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgNoOTP)
			h.redirect(w, r, sid, PathResendOTP)
		case errors.Is(err, service.ErrInvalidCode):
			audit.Reason = "invalid_code"
			observability.Audit(r, audit)
			response.Error(w, r, http.StatusBadRequest, "INVALID_OTP", msgInvalidOTP, nil)
		default:
			h.internalError(w, r, "verify_otp", err)
		}
		return
	}

	userID := strconv.FormatUint(uint64(user.ID), 10)
	observability.Audit(r, observability.AuditInput{EventName: "account.verify", ActorUserID: userID, TargetType: "user", TargetID: userID, Action: "verify", Outcome: "success"})
	h.flash(r, sid, session.LevelSuccess, msgVerified)
	h.redirect(w, r, sid, PathLogin)
}

// ResendPage only bounces back to the verification page.
func (h *AccountHandler) ResendPage(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, h.sessionID(r), PathVerifyOTP)
}

func (h *AccountHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "resend_otp", status, time.Since(start))
	}()

	var req resendOTPRequest
	if !h.bind(w, r, &req) {
		status = "invalid"
		return
	}
	sid := h.sessionID(r)
	res, err := h.registration.Resend(r.Context(), sid, req.Email)
	if err != nil {
		status = "failure"
		audit := observability.AuditInput{EventName: "account.resend", TargetType: "user", Action: "resend", Outcome: "rejected"}
		var cooldown *service.CooldownError
		switch {
		case errors.As(err, &cooldown):
			audit.Reason = "cooldown"
			observability.Audit(r, audit)
			secs := cooldown.Seconds()
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			h.flash(r, sid, session.LevelWarning, fmt.Sprintf(msgCooldown, secs))
			h.redirect(w, r, sid, cooldownURL(secs))
		case errors.Is(err, service.ErrVerificationSessionMissing):
			audit.Reason = "session"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgNoSessionEmail)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrVerificationSessionExpired):
			audit.Reason = "session_expired"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgSessionExpired)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrUserNotFound):
			audit.Reason = "unknown_user"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelError, msgUserNotFound)
			h.redirect(w, r, sid, PathRegister)
		case errors.Is(err, service.ErrAlreadyVerified):
			audit.Reason = "already_verified"
			observability.Audit(r, audit)
			h.flash(r, sid, session.LevelInfo, msgAlreadyVerified)
			h.redirect(w, r, sid, PathLogin)
		default:
			h.internalError(w, r, "resend_otp", err)
		}
		return
	}

	observability.Audit(r, observability.AuditInput{EventName: "account.resend", TargetType: "user", TargetID: res.Email, Action: "resend", Outcome: "success"})
	if res.Delivered {
		h.flash(r, sid, session.LevelSuccess, msgOTPResent)
	} else {
		h.flash(r, sid, session.LevelWarning, msgDeliveryWarning)
	}
	h.redirect(w, r, sid, cooldownURL(res.CooldownSeconds))
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req loginRequest
	if !h.bind(w, r, &req) {
		status = "invalid"
		return
	}
	sid := h.sessionID(r)
	user, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		status = "failure"
		h.loginFailure(w, r, sid, req.Username, err)
		return
	}

	token, err := h.jwtMgr.SignAccessToken(user.ID, user.Email, h.accessTTL)
	if err != nil {
		status = "failure"
		h.internalError(w, r, "login", err)
		return
	}
	h.cookieMgr.SetAccessCookie(w, token, h.accessTTL)
	userID := strconv.FormatUint(uint64(user.ID), 10)
	observability.Audit(r, observability.AuditInput{EventName: "account.login", ActorUserID: userID, TargetType: "user", TargetID: userID, Action: "login", Outcome: "success"})
	h.flash(r, sid, session.LevelSuccess, msgLoginSuccess)
	h.redirect(w, r, sid, PathHome)
}

func (h *AccountHandler) loginFailure(w http.ResponseWriter, r *http.Request, sid, email string, err error) {
	audit := observability.AuditInput{EventName: "account.login", TargetType: "user", Action: "login", Outcome: "rejected"}
	var failure *service.AuthFailure
	switch {
	case errors.As(err, &failure) && errors.Is(err, service.ErrAccountLocked):
		secs := int((failure.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		msg := fmt.Sprintf(msgLocked, secs)
		if failure.Triggered {
			audit.EventName = "account.lockout"
			audit.Action = "lock"
			audit.Outcome = "triggered"
			msg = fmt.Sprintf(msgLockTriggered, int(h.lockWindow/time.Minute))
		}
		audit.Reason = "locked"
		observability.Audit(r, audit)
		response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED", msg, map[string]int{"retry_after": secs})
	case errors.As(err, &failure) && errors.Is(err, service.ErrInvalidPassword):
		audit.Reason = "invalid_password"
		observability.Audit(r, audit)
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS",
			fmt.Sprintf(msgInvalidPassword, failure.RemainingAttempts),
			map[string]int{"remaining_attempts": failure.RemainingAttempts})
	case errors.Is(err, service.ErrAccountNotFound):
		audit.Reason = "unknown_account"
		observability.Audit(r, audit)
		response.Error(w, r, http.StatusNotFound, "ACCOUNT_NOT_FOUND", msgAccountNotFound, nil)
	case errors.Is(err, service.ErrAccountUnverified):
		audit.Reason = "unverified"
		observability.Audit(r, audit)
		if err := h.registration.StartVerificationForEmail(r.Context(), sid, email); err != nil {
			h.internalError(w, r, "login", err)
			return
		}
		h.flash(r, sid, session.LevelError, msgVerifyFirst)
		h.redirect(w, r, sid, PathVerifyOTP)
	default:
		h.internalError(w, r, "login", err)
	}
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(r)
	status := "success"
	if err := h.sessions.Clear(r.Context(), sid); err != nil {
		status = "failure"
		h.logger.WarnContext(r.Context(), "clear session on logout", "error", err)
	}
	h.cookieMgr.ClearAuthCookies(w)
	observability.RecordAuthLogout(r.Context(), status)
	observability.Audit(r, observability.AuditInput{EventName: "account.logout", TargetType: "session", Action: "logout", Outcome: status})
	response.Redirect(w, r, PathLogin, []session.Message{{Level: session.LevelInfo, Text: msgLoggedOut}})
}

func (h *AccountHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_reset", status, time.Since(start))
	}()

	var req passwordResetRequest
	if !h.bind(w, r, &req) {
		status = "invalid"
		return
	}
	sid := h.sessionID(r)
	res, err := h.reset.Request(r.Context(), sid, req.Email)
	if err != nil {
		status = "failure"
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.validationError(w, r, verr.Fields)
			return
		}
		h.internalError(w, r, "password_reset", err)
		return
	}
	if res.RequiresVerification {
		observability.Audit(r, observability.AuditInput{EventName: "password_reset.request", TargetType: "user", Action: "request", Outcome: "redirected", Reason: "unverified"})
		h.flash(r, sid, session.LevelInfo, msgResetUnverified)
		h.redirect(w, r, sid, PathVerifyOTP)
		return
	}
	observability.Audit(r, observability.AuditInput{EventName: "password_reset.request", TargetType: "user", Action: "request", Outcome: "accepted"})
	h.flash(r, sid, session.LevelInfo, msgResetSent)
	h.redirect(w, r, sid, PathPasswordResetDone)
}

// PasswordResetConfirmPage reports whether the link carried a token so the
// client can show the new-password form.
func (h *AccountHandler) PasswordResetConfirmPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	h.render(w, r, http.StatusOK, map[string]any{"token": token, "valid_link": token != ""})
}

func (h *AccountHandler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_reset_confirm", status, time.Since(start))
	}()

	var req passwordResetConfirmRequest
	if !h.bind(w, r, &req) {
		status = "invalid"
		return
	}
	sid := h.sessionID(r)
	err := h.reset.Confirm(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		status = "failure"
		audit := observability.AuditInput{EventName: "password_reset.confirm", TargetType: "user", Action: "confirm", Outcome: "rejected"}
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			audit.Reason = "validation"
			observability.Audit(r, audit)
			h.validationError(w, r, verr.Fields)
		case errors.Is(err, service.ErrInvalidResetToken):
			audit.Reason = "invalid_token"
			observability.Audit(r, audit)
			response.Error(w, r, http.StatusBadRequest, "INVALID_RESET_TOKEN", msgResetInvalidToken, nil)
		default:
			h.internalError(w, r, "password_reset_confirm", err)
		}
		return
	}
	observability.Audit(r, observability.AuditInput{EventName: "password_reset.confirm", TargetType: "user", Action: "confirm", Outcome: "success"})
	h.flash(r, sid, session.LevelSuccess, msgResetComplete)
	h.redirect(w, r, sid, PathPasswordResetDoneAll)
}

// bind decodes and validates the body, writing a 400 on failure.
func (h *AccountHandler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeRequest(r, dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return false
	}
	if fields := validateRequest(dst); len(fields) > 0 {
		h.validationError(w, r, fields)
		return false
	}
	return true
}

func (h *AccountHandler) validationError(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	response.Error(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Please correct the errors below.", fields)
}

func (h *AccountHandler) internalError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	h.logger.ErrorContext(r.Context(), "account request failed",
		"endpoint", endpoint,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"error", err,
	)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func (h *AccountHandler) sessionID(r *http.Request) string {
	sid, _ := middleware.SessionIDFromContext(r.Context())
	return sid
}

func (h *AccountHandler) flash(r *http.Request, sid, level, text string) {
	if sid == "" {
		return
	}
	if err := session.AddMessage(r.Context(), h.sessions, sid, level, text, session.MessageTTL); err != nil {
		h.logger.WarnContext(r.Context(), "store flash message", "error", err)
	}
}

// redirect answers with a 303 whose body mirrors the messages the landing
// page will show.
func (h *AccountHandler) redirect(w http.ResponseWriter, r *http.Request, sid, location string) {
	var msgs []session.Message
	if sid != "" {
		var err error
		if msgs, err = session.PeekMessages(r.Context(), h.sessions, sid); err != nil {
			h.logger.WarnContext(r.Context(), "read flash messages", "error", err)
		}
	}
	response.Redirect(w, r, location, msgs)
}

// render drains the flash messages into a page payload.
func (h *AccountHandler) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	msgs := []session.Message{}
	if sid := h.sessionID(r); sid != "" {
		popped, err := session.PopMessages(r.Context(), h.sessions, sid)
		if err != nil {
			h.logger.WarnContext(r.Context(), "read flash messages", "error", err)
		} else {
			msgs = popped
		}
	}
	data["messages"] = msgs
	response.JSON(w, r, status, data)
}

func cooldownURL(seconds int) string {
	if seconds <= 0 {
		return PathVerifyOTP
	}
	return PathVerifyOTP + "?cooldown=" + strconv.Itoa(seconds)
}
