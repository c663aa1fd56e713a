package identity

import (
	"fmt"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// DefaultSessionCookieTTL mirrors the 7 day client session the SPA expects.
const DefaultSessionCookieTTL = 7 * 24 * time.Hour

// HTTPController maps the identity operations onto Fiber routes. Inputs are
// validated payloads, outputs are a success/failure JSON envelope plus the
// session cookie where applicable.
type HTTPController struct {
	Debug         bool
	Logger        Logger
	SecureCookies bool

	svc        *IdentityService
	guard      *AuthorizationGuard
	cookieName string
	cookieTTL  time.Duration
	uploadsDir string
}

type HTTPControllerOption func(*HTTPController) *HTTPController

func NewHTTPController(svc *IdentityService, guard *AuthorizationGuard, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger:     defLogger{},
		svc:        svc,
		guard:      guard,
		cookieName: DefaultCookieName,
		cookieTTL:  DefaultSessionCookieTTL,
		uploadsDir: "uploads",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.svc == nil {
		panic("Missing IdentityService in http controller...")
	}

	if c.guard == nil {
		panic("Missing AuthorizationGuard in http controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithSecureCookies(secure bool) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		c.SecureCookies = secure
		return c
	}
}

func WithUploadsDir(dir string) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if dir != "" {
			c.uploadsDir = dir
		}
		return c
	}
}

func WithCookieTTL(ttl time.Duration) HTTPControllerOption {
	return func(c *HTTPController) *HTTPController {
		if ttl > 0 {
			c.cookieTTL = ttl
		}
		return c
	}
}

// RegisterRoutes mounts the identity routes on the given router, usually
// an /api/v1/user group.
func (a *HTTPController) RegisterRoutes(app fiber.Router) {
	app.Post("/register", a.Register)
	app.Post("/login", a.Login)
	app.Get("/logout", a.Logout)
	app.Post("/reset", a.ForgotPassword)
	app.Post("/reset/:token", a.ResetPassword)

	app.Get("/me", a.guard.RequireAuthenticated(), a.Me)
	app.Put("/me", a.guard.RequireAuthenticated(), a.UpdateProfile)
	app.Post("/change-password", a.guard.RequireAuthenticated(), a.ChangePassword)
}

// RegisterPayload is the register form payload
type RegisterPayload struct {
	FullName string `form:"full_name" json:"full_name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *HTTPController) Register(c *fiber.Ctx) error {
	payload := new(RegisterPayload)

	if err := c.BodyParser(payload); err != nil {
		return renderError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse registration payload").
			WithCode(errors.CodeBadRequest))
	}

	if a.Debug {
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(payload))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(c, err)
	}

	imagePath, err := a.stageUpload(c)
	if err != nil {
		return renderError(c, err)
	}

	account, token, err := a.svc.Register(c.UserContext(), RegisterInput{
		FullName:  payload.FullName,
		Email:     payload.Email,
		Password:  payload.Password,
		ImagePath: imagePath,
	})
	if err != nil {
		return renderError(c, err)
	}

	a.setSessionCookie(c, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"user":    account,
	})
}

// LoginPayload is the login form payload
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *HTTPController) Login(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := c.BodyParser(payload); err != nil {
		return renderError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse login payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(c, err)
	}

	account, token, err := a.svc.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return renderError(c, err)
	}

	a.setSessionCookie(c, token)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User logged in successfully",
		"user":    account,
	})
}

func (a *HTTPController) Logout(c *fiber.Ctx) error {
	// Best-effort claims lookup: an expired or absent session still logs out.
	if claims, err := a.guard.Authenticate(c); err == nil {
		a.svc.Logout(claims)
	}

	a.clearSessionCookie(c)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User logged out successfully",
	})
}

func (a *HTTPController) Me(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return renderError(c, ErrUnauthenticated)
	}

	id, err := claims.AccountUUID()
	if err != nil {
		return renderError(c, ErrUnauthenticated)
	}

	account, err := a.svc.Profile(c.UserContext(), id)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User details",
		"user":    account,
	})
}

// ForgotPasswordPayload is the reset request payload
type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *HTTPController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(ForgotPasswordPayload)

	if err := c.BodyParser(payload); err != nil {
		return renderError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse reset payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(c, err)
	}

	if err := a.svc.RequestPasswordReset(c.UserContext(), payload.Email); err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Reset password token has been sent to %s successfully", payload.Email),
	})
}

// ResetPasswordPayload carries the new password; the token travels in the
// URL the email linked to.
type ResetPasswordPayload struct {
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *HTTPController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)

	if err := c.BodyParser(payload); err != nil {
		return renderError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse reset payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(c, err)
	}

	if err := a.svc.CompleteReset(c.UserContext(), c.Params("token"), payload.Password); err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password changed successfully",
	})
}

// ChangePasswordPayload is the change password payload
type ChangePasswordPayload struct {
	OldPassword string `form:"old_password" json:"old_password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

func (a *HTTPController) ChangePassword(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return renderError(c, ErrUnauthenticated)
	}

	id, err := claims.AccountUUID()
	if err != nil {
		return renderError(c, ErrUnauthenticated)
	}

	payload := new(ChangePasswordPayload)

	if err := c.BodyParser(payload); err != nil {
		return renderError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(c, err)
	}

	if err := a.svc.ChangePassword(c.UserContext(), id, payload.OldPassword, payload.NewPassword); err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password changed successfully",
	})
}

// UpdateProfilePayload is the profile update payload
type UpdateProfilePayload struct {
	FullName string `form:"full_name" json:"full_name"`
}

// Validate will run validation rules
func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(1, 200)),
	)
}

func (a *HTTPController) UpdateProfile(c *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(c)
	if !ok {
		return renderError(c, ErrUnauthenticated)
	}

	id, err := claims.AccountUUID()
	if err != nil {
		return renderError(c, ErrUnauthenticated)
	}

	payload := new(UpdateProfilePayload)

	if err := c.BodyParser(payload); err != nil {
		return renderError(c, errors.Wrap(err, errors.CategoryBadInput, "unable to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return renderValidationError(c, err)
	}

	imagePath, err := a.stageUpload(c)
	if err != nil {
		return renderError(c, err)
	}

	account, err := a.svc.UpdateProfile(c.UserContext(), id, ProfileUpdateInput{
		FullName:  payload.FullName,
		ImagePath: imagePath,
	})
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User details updated successfully",
		"user":    account,
	})
}

// stageUpload saves an optional multipart avatar to the local uploads
// directory and returns the staged path, empty when no file was attached.
func (a *HTTPController) stageUpload(c *fiber.Ctx) (string, error) {
	file, err := c.FormFile("avatar")
	if err != nil || file == nil {
		return "", nil
	}

	staged := filepath.Join(a.uploadsDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, staged); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to stage uploaded file")
	}

	return staged, nil
}

func (a *HTTPController) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Expires:  time.Now().Add(a.cookieTTL),
		HTTPOnly: true,
		Secure:   a.SecureCookies,
		SameSite: "Lax",
	})
}

func (a *HTTPController) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   a.SecureCookies,
		SameSite: "Lax",
	})
}

func renderValidationError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}

func renderError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "internal server error").
			WithCode(errors.CodeInternal)
	}

	return c.Status(statusFromError(richErr)).JSON(fiber.Map{
		"success": false,
		"message": richErr.Message,
	})
}
