package query

import (
	"apphost/internal/application/query/get_app"
	"apphost/internal/application/query/get_app_log"
	"apphost/internal/application/query/get_secrets"
	"apphost/internal/application/query/get_template"
	"apphost/internal/application/query/get_user"
	"apphost/internal/application/query/list_apps"
	"apphost/internal/application/query/list_templates"
	"apphost/internal/application/query/list_users"
	appservice "apphost/internal/domain/service/app"
	userservice "apphost/internal/domain/service/user"
	"apphost/pkg/cqrs"
	"apphost/pkg/log"
)

func RegisterQueryHandlers(b cqrs.QueryBus, apps *appservice.Service, users *userservice.Service) error {
	if err := b.Register(get_app.NewGetAppQueryHandler(apps)); err != nil {
		return log.Errorf("failed to register get app query handler: %v", err)
	}

	if err := b.Register(list_apps.NewListAppsQueryHandler(apps)); err != nil {
		return log.Errorf("failed to register list apps query handler: %v", err)
	}

	if err := b.Register(list_templates.NewListTemplatesQueryHandler(apps)); err != nil {
		return log.Errorf("failed to register list templates query handler: %v", err)
	}

	if err := b.Register(get_template.NewGetTemplateQueryHandler(apps)); err != nil {
		return log.Errorf("failed to register get template query handler: %v", err)
	}

	if err := b.Register(get_app_log.NewGetAppLogQueryHandler(apps)); err != nil {
		return log.Errorf("failed to register get app log query handler: %v", err)
	}

	if err := b.Register(get_secrets.NewGetSecretsQueryHandler(apps)); err != nil {
		return log.Errorf("failed to register get secrets query handler: %v", err)
	}

	if err := b.Register(get_user.NewGetUserQueryHandler(users)); err != nil {
		return log.Errorf("failed to register get user query handler: %v", err)
	}

	if err := b.Register(list_users.NewListUsersQueryHandler(users)); err != nil {
		return log.Errorf("failed to register list users query handler: %v", err)
	}

	return nil
}
