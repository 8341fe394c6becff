package auth

import (
	"errors"
	"net/http"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/auth"
	"github.com/hilthontt/huddle/internal/infrastructure/json"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/presentation/utils"
)

type Handler struct {
	users         domain.UserRepository
	hasher        *auth.PasswordHasher
	tokens        *auth.TokenIssuer
	secureCookies bool
	logger        logging.Logger
}

func NewHandler(
	users domain.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	secureCookies bool,
	logger logging.Logger,
) *Handler {
	return &Handler{
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	creds := auth.Credentials{Username: req.Username, Password: req.Password}
	if err := auth.ValidateSignup(creds); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	hash, err := h.hasher.Hash(creds.Password)
	if err != nil {
		h.logger.Error(logging.Auth, logging.Signup, "failed to hash password", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	user, err := domain.NewUser(creds.Username, hash)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			json.WriteError(w, http.StatusConflict, "Username is already taken")
			return
		}
		h.logger.Error(logging.Auth, logging.Signup, "failed to create user", map[logging.ExtraKey]any{
			logging.Username:     user.Username,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	h.logger.Info(logging.Auth, logging.Signup, "user signed up", map[logging.ExtraKey]any{
		logging.Username: user.Username,
	})
	json.Write(w, http.StatusCreated, newUserResponse(user.Identity()))
}

// LoginHandler verifies the credentials, sets the session cookie and returns
// the same token for clients that cannot use cookies.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	creds := auth.Credentials{Username: req.Username, Password: req.Password}
	if err := auth.ValidateLogin(creds); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	user, err := h.users.GetByUsername(r.Context(), creds.Username)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			json.WriteError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.logger.Error(logging.Auth, logging.Login, "failed to load user", map[logging.ExtraKey]any{
			logging.Username:     creds.Username,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	ok, err := h.hasher.Compare(creds.Password, user.PasswordHash)
	if err != nil || !ok {
		json.WriteError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.Error(logging.Auth, logging.Login, "failed to issue token", map[logging.ExtraKey]any{
			logging.Username:     user.Username,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	utils.SetSessionCookie(w, token, expiresAt, h.secureCookies)
	json.Write(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      newUserResponse(user.Identity()),
	})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	utils.ClearSessionCookie(w, h.secureCookies)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	identity := utils.IdentityFromContext(r.Context())
	if identity == nil {
		json.WriteUnauthorizedError(w)
		return
	}
	json.Write(w, http.StatusOK, newUserResponse(identity))
}
