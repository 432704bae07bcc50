package gitolite

import (
	"strings"

	"apphost/internal/domain/model"
)

// Permission granted on every managed repository.
const Permission = "RW+"

// GenerateConfig renders gitolite.conf for the given users, apps and
// templates. Each app repository grants write access to every user who may
// push and whose access grant covers the app. Template repositories are
// writable by admins only. The output depends only on its inputs.
func GenerateConfig(users []model.User, apps, templates []string) string {
	var pushers, admins []model.User
	for _, u := range users {
		switch {
		case u.IsAdmin():
			admins = append(admins, u)
		case u.CanPush():
			pushers = append(pushers, u)
		}
	}

	var b strings.Builder
	for _, folder := range apps {
		writeRepo(&b, model.AppRepoName(folder))
		for _, u := range pushers {
			if u.MayAccess(folder) {
				writeGrant(&b, u.ID)
			}
		}
		for _, u := range admins {
			writeGrant(&b, u.ID)
		}
	}

	for _, folder := range templates {
		writeRepo(&b, model.TemplateRepoName(folder))
		for _, u := range admins {
			writeGrant(&b, u.ID)
		}
	}
	return b.String()
}

func writeRepo(b *strings.Builder, name string) {
	b.WriteString("repo ")
	b.WriteString(name)
	b.WriteByte('\n')
}

func writeGrant(b *strings.Builder, principal string) {
	b.WriteString("    ")
	b.WriteString(Permission)
	b.WriteString(" = ")
	b.WriteString(principal)
	b.WriteByte('\n')
}
