package command

import (
	"apphost/internal/application/command/add_ssh_key"
	"apphost/internal/application/command/create_app"
	"apphost/internal/application/command/create_template"
	"apphost/internal/application/command/create_user"
	"apphost/internal/application/command/delete_app"
	"apphost/internal/application/command/delete_template"
	"apphost/internal/application/command/delete_user"
	"apphost/internal/application/command/recreate_ecosystems"
	"apphost/internal/application/command/redeploy_app"
	"apphost/internal/application/command/remove_ssh_key"
	"apphost/internal/application/command/restrict_app"
	"apphost/internal/application/command/save_secrets"
	"apphost/internal/application/command/sync_hosting"
	"apphost/internal/application/command/update_user"
	appservice "apphost/internal/domain/service/app"
	userservice "apphost/internal/domain/service/user"
	"apphost/pkg/cqrs"
	"apphost/pkg/log"
)

// RegisterCommandHandlers registers every write operation on b. onChange is
// called after users, keys or grants change; queue may be nil when git
// hosting is not managed by this process.
func RegisterCommandHandlers(b cqrs.CommandBus, apps *appservice.Service, users *userservice.Service, queue sync_hosting.Enqueuer, onChange func()) error {
	handlers := []interface{}{
		create_app.NewCreateAppHandler(apps),
		delete_app.NewDeleteAppHandler(apps),
		redeploy_app.NewRedeployAppHandler(apps),
		recreate_ecosystems.NewRecreateEcosystemsHandler(apps),
		save_secrets.NewSaveSecretsHandler(apps),
		restrict_app.NewRestrictAppHandler(apps, users, onChange),
		create_template.NewCreateTemplateHandler(apps),
		delete_template.NewDeleteTemplateHandler(apps),
		create_user.NewCreateUserHandler(users, onChange),
		update_user.NewUpdateUserHandler(users, onChange),
		delete_user.NewDeleteUserHandler(users, onChange),
		add_ssh_key.NewAddSSHKeyHandler(users, onChange),
		remove_ssh_key.NewRemoveSSHKeyHandler(users, onChange),
	}
	if queue != nil {
		handlers = append(handlers, sync_hosting.NewSyncHostingHandler(queue))
	}

	for _, h := range handlers {
		if err := b.Register(h); err != nil {
			return log.Errorf("failed to register command handler %T: %w", h, err)
		}
	}
	return nil
}
