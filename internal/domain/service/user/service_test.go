package user

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"apphost/internal/domain/model"
	"apphost/internal/infra/store/badger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/ssh"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(badger.NewUserRepository(db)).WithPasswordCost(bcrypt.MinCost)
}

func publicKey(t *testing.T, comment string) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " " + comment
}

func mustCreate(t *testing.T, s *Service, username string, role model.Role, apps ...string) *model.User {
	t.Helper()
	u, err := s.Create(context.Background(), NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret",
		Role:     role,
		Apps:     apps,
	})
	require.NoError(t, err)
	return u
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u := mustCreate(t, s, "ada", model.RoleDev)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "secret", u.HashedPassword)

	got, err := s.Authenticate(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, model.ErrNotPermitted)

	_, err = s.Authenticate(ctx, "nobody@example.com", "secret")
	assert.ErrorIs(t, err, model.ErrNotPermitted)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mustCreate(t, s, "ada", model.RoleDev)

	_, err := s.Create(ctx, NewUser{Username: "ADA", Email: "other@example.com", Password: "x"})
	var dup *model.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "username", dup.Field)

	_, err = s.Create(ctx, NewUser{Username: "bob", Email: "ada@example.com", Password: "x"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
}

func TestCreateValidation(t *testing.T) {
	s := newTestService(t)

	_, err := s.Create(context.Background(), NewUser{Email: "not-an-email", Role: "root"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "role")
}

func TestUpdateRechecksUniqueness(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	ada := mustCreate(t, s, "ada", model.RoleDev)
	mustCreate(t, s, "bob", model.RoleUser)

	taken := "bob"
	_, err := s.Update(ctx, ada.ID, model.UserUpdate{Username: &taken})
	assert.ErrorIs(t, err, model.ErrDuplicate)

	same := "ada"
	role := model.RoleAdmin
	apps := []string{"blog"}
	updated, err := s.Update(ctx, ada.ID, model.UserUpdate{Username: &same, Role: &role, Apps: &apps})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)
	assert.Equal(t, []string{"blog"}, updated.Apps)

	password := "new-secret"
	_, err = s.Update(ctx, ada.ID, model.UserUpdate{Password: &password})
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "ada@example.com", "new-secret")
	assert.NoError(t, err)
}

func TestSSHKeys(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	ada := mustCreate(t, s, "ada", model.RoleDev)

	key, err := s.AddSSHKey(ctx, ada.ID, "laptop", publicKey(t, "ada@laptop"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key.PublicKey, "ssh-ed25519 "))
	assert.True(t, strings.HasSuffix(key.PublicKey, " ada@laptop"))

	_, err = s.AddSSHKey(ctx, ada.ID, "laptop", publicKey(t, "again"))
	assert.ErrorIs(t, err, model.ErrDuplicate)

	_, err = s.AddSSHKey(ctx, ada.ID, "la ptop", publicKey(t, "other"))
	require.NoError(t, err)
	_, err = s.AddSSHKey(ctx, ada.ID, "la-ptop", publicKey(t, "collides"))
	assert.ErrorIs(t, err, model.ErrDuplicate, "names sharing a keydir entry are duplicates")

	_, err = s.AddSSHKey(ctx, ada.ID, "desktop", "ssh-rsa garbage")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "publicKey")

	require.NoError(t, s.RemoveSSHKey(ctx, ada.ID, key.ID))
	assert.ErrorIs(t, s.RemoveSSHKey(ctx, ada.ID, key.ID), model.ErrNotFound)

	got, err := s.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, got.SSHKeys, 1)
	assert.Equal(t, "la ptop", got.SSHKeys[0].Name)
}

func TestRestrictAppToUsers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	ada := mustCreate(t, s, "ada", model.RoleDev, "blog")
	bob := mustCreate(t, s, "bob", model.RoleDev)
	cy := mustCreate(t, s, "cy", model.RoleUser, "blog", "wiki")

	require.NoError(t, s.RestrictAppToUsers(ctx, "blog", []string{bob.ID}))

	for id, want := range map[string]bool{ada.ID: false, bob.ID: true, cy.ID: false} {
		u, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, u.MayAccess("blog"), u.Username)
	}

	got, err := s.Get(ctx, cy.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wiki"}, got.Apps)

	require.NoError(t, s.RemoveAppFromAllUsers(ctx, "blog"))
	withAccess, err := s.FindWithAccess(ctx, "blog")
	require.NoError(t, err)
	assert.Empty(t, withAccess)
}

func TestFindByRoles(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mustCreate(t, s, "root", model.RoleAdmin)
	mustCreate(t, s, "ada", model.RoleDev)
	mustCreate(t, s, "guest", model.RoleUser)

	pushers, err := s.FindByRoles(ctx, model.RoleAdmin, model.RoleDev)
	require.NoError(t, err)
	assert.Len(t, pushers, 2)

	withAccess, err := s.FindWithAccess(ctx, "anything")
	require.NoError(t, err)
	require.Len(t, withAccess, 1)
	assert.Equal(t, "root", withAccess[0].Username)
}
