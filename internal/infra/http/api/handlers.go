package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"apphost/internal/application/command/add_ssh_key"
	"apphost/internal/application/command/create_app"
	"apphost/internal/application/command/create_template"
	"apphost/internal/application/command/create_user"
	"apphost/internal/application/command/delete_app"
	"apphost/internal/application/command/delete_template"
	"apphost/internal/application/command/delete_user"
	"apphost/internal/application/command/redeploy_app"
	"apphost/internal/application/command/remove_ssh_key"
	"apphost/internal/application/command/restrict_app"
	"apphost/internal/application/command/save_secrets"
	"apphost/internal/application/command/sync_hosting"
	"apphost/internal/application/command/update_user"
	"apphost/internal/application/query/get_app"
	"apphost/internal/application/query/get_app_log"
	"apphost/internal/application/query/get_secrets"
	"apphost/internal/application/query/get_template"
	"apphost/internal/application/query/get_user"
	"apphost/internal/application/query/list_apps"
	"apphost/internal/application/query/list_templates"
	"apphost/internal/application/query/list_users"
	"apphost/internal/domain/model"
	"apphost/pkg/cqrs"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Authenticator checks sign-in credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

type handlers struct {
	sessions    *Sessions
	auth        Authenticator
	commands    cqrs.CommandBus
	queries     cqrs.QueryBus
	syncEnabled bool
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}

// ----- session -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlers) login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.auth.Authenticate(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, model.ErrNotPermitted) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return err
	}
	if err := h.sessions.SetCookie(c, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user.Public())
}

func (h *handlers) logout(c echo.Context) error {
	h.sessions.ClearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c).Public())
}

// ----- apps -----

type createAppReq struct {
	FolderName string `json:"folderName"`
	Template   string `json:"template"`
}

func (h *handlers) listApps(c echo.Context) error {
	apps, err := cqrs.Ask[[]model.AppView](c.Request().Context(), h.queries, list_apps.ListAppsQuery{Viewer: currentUser(c)})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apps)
}

func (h *handlers) getApp(c echo.Context) error {
	return h.respondApp(c, http.StatusOK, c.Param("folder"))
}

func (h *handlers) respondApp(c echo.Context, status int, folder string) error {
	app, err := cqrs.Ask[*model.AppView](c.Request().Context(), h.queries, get_app.GetAppQuery{FolderName: folder})
	if err != nil {
		return err
	}
	return c.JSON(status, app)
}

func (h *handlers) createApp(c echo.Context) error {
	var req createAppReq
	if err := bind(c, &req); err != nil {
		return err
	}
	folder, err := model.NormalizeFolderName(req.FolderName)
	if err != nil {
		return err
	}
	err = h.commands.Dispatch(c.Request().Context(), create_app.CreateAppCommand{
		FolderName: folder,
		Template:   req.Template,
		Owner:      currentUser(c),
	})
	if err != nil {
		return err
	}
	return h.respondApp(c, http.StatusCreated, folder)
}

func (h *handlers) deleteApp(c echo.Context) error {
	err := h.commands.Dispatch(c.Request().Context(), delete_app.DeleteAppCommand{FolderName: c.Param("folder")})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type redeployResp struct {
	App    *model.AppView `json:"app"`
	Output string         `json:"output"`
}

func (h *handlers) redeployApp(c echo.Context) error {
	ctx := c.Request().Context()
	folder := c.Param("folder")

	var out bytes.Buffer
	if err := h.commands.Dispatch(ctx, redeploy_app.RedeployAppCommand{FolderName: folder, Output: &out}); err != nil {
		return err
	}
	app, err := cqrs.Ask[*model.AppView](ctx, h.queries, get_app.GetAppQuery{FolderName: folder})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, redeployResp{App: app, Output: out.String()})
}

type secretsBody struct {
	Secrets string `json:"secrets"`
}

func (h *handlers) getSecrets(c echo.Context) error {
	text, err := cqrs.Ask[string](c.Request().Context(), h.queries, get_secrets.GetSecretsQuery{FolderName: c.Param("folder")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, secretsBody{Secrets: text})
}

func (h *handlers) saveSecrets(c echo.Context) error {
	var req secretsBody
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.commands.Dispatch(c.Request().Context(), save_secrets.SaveSecretsCommand{
		FolderName: c.Param("folder"),
		Text:       req.Secrets,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type accessReq struct {
	UserIDs []string `json:"userIds"`
}

func (h *handlers) restrictApp(c echo.Context) error {
	var req accessReq
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.commands.Dispatch(c.Request().Context(), restrict_app.RestrictAppCommand{
		FolderName: c.Param("folder"),
		UserIDs:    req.UserIDs,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) appLog(c echo.Context) error {
	f, err := cqrs.Ask[io.ReadCloser](c.Request().Context(), h.queries, get_app_log.GetAppLogQuery{FolderName: c.Param("folder")})
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Stream(http.StatusOK, echo.MIMETextPlainCharsetUTF8, f)
}

// ----- templates -----

type createTemplateReq struct {
	FolderName string `json:"folderName"`
}

func (h *handlers) listTemplates(c echo.Context) error {
	templates, err := cqrs.Ask[[]model.AppTemplate](c.Request().Context(), h.queries, list_templates.ListTemplatesQuery{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

func (h *handlers) createTemplate(c echo.Context) error {
	var req createTemplateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	folder, err := model.NormalizeFolderName(req.FolderName)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.commands.Dispatch(ctx, create_template.CreateTemplateCommand{FolderName: folder}); err != nil {
		return err
	}
	tpl, err := cqrs.Ask[*model.AppTemplate](ctx, h.queries, get_template.GetTemplateQuery{FolderName: folder})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *handlers) deleteTemplate(c echo.Context) error {
	err := h.commands.Dispatch(c.Request().Context(), delete_template.DeleteTemplateCommand{FolderName: c.Param("folder")})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- users -----

type createUserReq struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	Apps     []string   `json:"apps"`
}

type updateUserReq struct {
	Username *string     `json:"username"`
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
	Apps     *[]string   `json:"apps"`
}

type addKeyReq struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

func (h *handlers) listUsers(c echo.Context) error {
	users, err := cqrs.Ask[[]model.User](c.Request().Context(), h.queries, list_users.ListUsersQuery{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *handlers) respondUser(c echo.Context, status int, id string) error {
	user, err := cqrs.Ask[*model.User](c.Request().Context(), h.queries, get_user.GetUserQuery{ID: id})
	if err != nil {
		return err
	}
	return c.JSON(status, user)
}

func (h *handlers) createUser(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	id := uuid.New().String()
	err := h.commands.Dispatch(c.Request().Context(), create_user.CreateUserCommand{
		ID:       id,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Apps:     req.Apps,
	})
	if err != nil {
		return err
	}
	return h.respondUser(c, http.StatusCreated, id)
}

func (h *handlers) updateUser(c echo.Context) error {
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Param("id")
	err := h.commands.Dispatch(c.Request().Context(), update_user.UpdateUserCommand{
		ID: id,
		Update: model.UserUpdate{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
			Apps:     req.Apps,
		},
	})
	if err != nil {
		return err
	}
	return h.respondUser(c, http.StatusOK, id)
}

func (h *handlers) deleteUser(c echo.Context) error {
	id := c.Param("id")
	if id == currentUser(c).ID {
		return model.NewValidationError("id", "You cannot delete yourself")
	}
	if err := h.commands.Dispatch(c.Request().Context(), delete_user.DeleteUserCommand{ID: id}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) addKey(c echo.Context) error {
	var req addKeyReq
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Param("id")
	err := h.commands.Dispatch(c.Request().Context(), add_ssh_key.AddSSHKeyCommand{
		UserID:    id,
		KeyName:   req.Name,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		return err
	}
	return h.respondUser(c, http.StatusCreated, id)
}

func (h *handlers) removeKey(c echo.Context) error {
	err := h.commands.Dispatch(c.Request().Context(), remove_ssh_key.RemoveSSHKeyCommand{
		UserID: c.Param("id"),
		KeyID:  c.Param("keyId"),
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- git hosting -----

func (h *handlers) sync(c echo.Context) error {
	if !h.syncEnabled {
		return echo.NewHTTPError(http.StatusConflict, "git hosting is disabled")
	}
	if err := h.commands.Dispatch(c.Request().Context(), sync_hosting.SyncHostingCommand{Wait: true}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
