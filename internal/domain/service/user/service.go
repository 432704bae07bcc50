// Package user manages user accounts, their SSH keys and their app grants.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"apphost/internal/domain/model"
	"apphost/internal/domain/repository"
	"apphost/pkg/log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/ssh"
)

// PasswordCost is the bcrypt cost used for new password hashes.
const PasswordCost = 12

// NewUser holds the input for Create. Exactly one of Password and
// HashedPassword must be set. ID is generated when empty.
type NewUser struct {
	ID             string
	Username       string
	Email          string
	Password       string
	HashedPassword string
	Role           model.Role
	Apps           []string
}

// Service enforces the write-time rules on users: unique username and
// email, unique key names per user, valid roles and keys.
type Service struct {
	repo repository.UserRepository
	cost int

	// mu serializes uniqueness checks with the writes they guard.
	mu sync.Mutex
	// now is replaced in tests.
	now func() time.Time
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo, cost: PasswordCost, now: time.Now}
}

// WithPasswordCost lowers the bcrypt cost, for tests.
func (s *Service) WithPasswordCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// FindByRoles returns users holding any of roles.
func (s *Service) FindByRoles(ctx context.Context, roles ...model.Role) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.User
	for _, u := range users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

// FindWithAccess returns every user whose access grant covers folderName.
func (s *Service) FindWithAccess(ctx context.Context, folderName string) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.User
	for i := range users {
		if users[i].MayAccess(folderName) {
			out = append(out, users[i])
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in NewUser) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = model.RoleUser
	}

	fields := map[string]string{}
	if in.Username == "" {
		fields["username"] = "Username is required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "Please provide a valid email address"
	}
	if in.Password == "" && in.HashedPassword == "" {
		fields["password"] = "Password is required"
	}
	if !in.Role.Valid() {
		fields["role"] = fmt.Sprintf("Unknown role %q", in.Role)
	}
	if len(fields) > 0 {
		return nil, &model.ValidationError{Fields: fields}
	}

	hashed := in.HashedPassword
	if hashed == "" {
		var err error
		if hashed, err = s.hash(in.Password); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnique(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}

	apps := in.Apps
	if apps == nil {
		apps = []string{}
	}
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	user := &model.User{
		ID:             id,
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		Role:           in.Role,
		Apps:           apps,
		SSHKeys:        []model.SSHKey{},
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	log.Info("User created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// Authenticate returns the user with email when password matches.
// Unknown emails and wrong passwords both yield model.ErrNotPermitted.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrNotPermitted
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, model.ErrNotPermitted
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	var hashed string
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, model.NewValidationError("password", "Password must not be empty")
		}
		var err error
		if hashed, err = s.hash(*upd.Password); err != nil {
			return nil, err
		}
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, model.NewValidationError("role", fmt.Sprintf("Unknown role %q", *upd.Role))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var username, email string
	if upd.Username != nil {
		username = strings.TrimSpace(*upd.Username)
	}
	if upd.Email != nil {
		email = strings.TrimSpace(*upd.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, model.NewValidationError("email", "Please provide a valid email address")
		}
	}
	if err := s.ensureUnique(ctx, id, username, email); err != nil {
		return nil, err
	}

	var updated *model.User
	err := s.repo.Update(ctx, id, func(u *model.User) error {
		if username != "" {
			u.Username = username
		}
		if email != "" {
			u.Email = email
		}
		if hashed != "" {
			u.HashedPassword = hashed
		}
		if upd.Role != nil {
			u.Role = *upd.Role
		}
		if upd.Apps != nil {
			u.Apps = append([]string{}, (*upd.Apps)...)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("User updated", "user_id", id)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info("User deleted", "user_id", id)
	return nil
}

// AddSSHKey validates publicKey as an authorized_keys line and stores it
// under name, which must be unique for the user.
func (s *Service) AddSSHKey(ctx context.Context, userID, name, publicKey string) (*model.SSHKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("name", "Key name is required")
	}

	parsed, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(publicKey)))
	if err != nil {
		return nil, model.NewValidationError("publicKey", "Please provide a valid SSH public key")
	}
	normalized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(parsed)))
	if comment != "" {
		normalized += " " + comment
	}

	key := model.SSHKey{
		ID:        uuid.New().String(),
		Name:      name,
		PublicKey: normalized,
		CreatedAt: s.now().UTC(),
	}

	err = s.repo.Update(ctx, userID, func(u *model.User) error {
		if _, exists := u.KeyByName(name); exists {
			return &model.DuplicateError{Field: "SSH key", Value: name}
		}
		u.SSHKeys = append(u.SSHKeys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("SSH key added", "user_id", userID, "key_name", name, "fingerprint", ssh.FingerprintSHA256(parsed))
	return &key, nil
}

func (s *Service) RemoveSSHKey(ctx context.Context, userID, keyID string) error {
	err := s.repo.Update(ctx, userID, func(u *model.User) error {
		kept := u.SSHKeys[:0]
		found := false
		for _, k := range u.SSHKeys {
			if k.ID == keyID {
				found = true
				continue
			}
			kept = append(kept, k)
		}
		if !found {
			return fmt.Errorf("ssh key %s: %w", keyID, model.ErrNotFound)
		}
		u.SSHKeys = kept
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("SSH key removed", "user_id", userID, "key_id", keyID)
	return nil
}

// RestrictAppToUsers grants folderName to exactly the listed users and
// revokes it from everybody else.
func (s *Service) RestrictAppToUsers(ctx context.Context, folderName string, userIDs []string) error {
	allowed := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}

	err := s.repo.UpdateAll(ctx, func(u *model.User) bool {
		if _, ok := allowed[u.ID]; ok {
			return u.GrantApp(folderName)
		}
		return u.RevokeApp(folderName)
	})
	if err != nil {
		return fmt.Errorf("restrict %s: %w", folderName, err)
	}
	log.Info("App access restricted", "folder_name", folderName, "users", len(userIDs))
	return nil
}

// RemoveAppFromAllUsers strips folderName from every grant set.
func (s *Service) RemoveAppFromAllUsers(ctx context.Context, folderName string) error {
	return s.RestrictAppToUsers(ctx, folderName, nil)
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// ensureUnique fails when username or email belong to a user other than
// selfID. Empty values are not checked.
func (s *Service) ensureUnique(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		other, err := s.repo.FindByUsername(ctx, username)
		if err == nil && other.ID != selfID {
			return &model.DuplicateError{Field: "username", Value: username}
		}
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}
	if email != "" {
		other, err := s.repo.FindByEmail(ctx, email)
		if err == nil && other.ID != selfID {
			return &model.DuplicateError{Field: "email", Value: email}
		}
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
	}
	return nil
}
