package repository

import "context"

// AppCatalog exposes the applications and templates known on disk to the
// components that do not own them: the reconciler and the proxy.
type AppCatalog interface {
	// ListFolders returns the folder names of all applications, sorted.
	ListFolders(ctx context.Context) ([]string, error)
	// ListTemplateFolders returns the folder names of all templates, sorted.
	ListTemplateFolders(ctx context.Context) ([]string, error)

	// AppPort returns the port allocated to the application.
	// Unknown applications return model.ErrNotFound.
	AppPort(ctx context.Context, folderName string) (int, error)

	WorkingDir(folderName string) string
	TemplateDir(folderName string) string

	// PostReceiveScript is the hook that deploys pushes to an application.
	PostReceiveScript(folderName string) string
	// TemplatePostReceiveScript is the hook that checks pushes to a
	// template out into its working directory.
	TemplatePostReceiveScript(folderName string) string
}
