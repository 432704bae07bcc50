package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"apphost/internal/domain/model"
	"apphost/internal/domain/repository"
	"apphost/pkg/retry"

	"github.com/dgraph-io/badger/v4"
)

const (
	userPrefix     = "user/"
	emailIndex     = "idx/email/"
	usernameIndex  = "idx/username/"
	conflictDelay  = 5 * time.Millisecond
	conflictBudget = 5
)

// UserRepository stores users as JSON documents keyed by id, with lookup
// keys for email and username.
type UserRepository struct {
	db *DB
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(id string) []byte { return []byte(userPrefix + id) }

func emailKey(email string) []byte {
	return []byte(emailIndex + strings.ToLower(strings.TrimSpace(email)))
}

func usernameKey(username string) []byte {
	return []byte(usernameIndex + strings.ToLower(strings.TrimSpace(username)))
}

func (r *UserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	var user *model.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findByIndex(emailKey(email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findByIndex(usernameKey(username))
}

func (r *UserRepository) findByIndex(key []byte) (*model.User, error) {
	var user *model.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	return user, err
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var user model.User
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) Save(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return errors.New("user id is required")
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		return putUser(txn, user)
	})
}

func (r *UserRepository) Update(ctx context.Context, id string, fn func(user *model.User) error) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		user, err := getUser(txn, id)
		if err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
		user.ID = id
		return putUser(txn, user)
	})
}

func (r *UserRepository) UpdateAll(ctx context.Context, fn func(user *model.User) bool) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		var changed []*model.User

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userPrefix)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			user := &model.User{}
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, user)
			})
			if err != nil {
				it.Close()
				return err
			}
			if fn(user) {
				changed = append(changed, user)
			}
		}
		it.Close()

		for _, user := range changed {
			if err := putUser(txn, user); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		user, err := getUser(txn, id)
		if err != nil {
			return err
		}
		if err := deleteIndexes(txn, user); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (r *UserRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	opts := retry.Options{Times: conflictBudget, Delay: conflictDelay, Backoff: true}
	_, err := retry.Do(ctx, opts, func(ctx context.Context) (struct{}, error) {
		err := r.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			return struct{}{}, retry.Again(err)
		}
		return struct{}{}, err
	})
	return err
}

func getUser(txn *badger.Txn, id string) (*model.User, error) {
	item, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user := &model.User{}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, user)
	})
	if err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return user, nil
}

func putUser(txn *badger.Txn, user *model.User) error {
	previous, err := getUser(txn, user.ID)
	switch {
	case err == nil:
		if err := deleteIndexes(txn, previous); err != nil {
			return err
		}
	case !errors.Is(err, model.ErrNotFound):
		return err
	}

	if user.Apps == nil {
		user.Apps = []string{}
	}
	if user.SSHKeys == nil {
		user.SSHKeys = []model.SSHKey{}
	}

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := txn.Set(userKey(user.ID), data); err != nil {
		return err
	}
	if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
		return err
	}
	return txn.Set(usernameKey(user.Username), []byte(user.ID))
}

func deleteIndexes(txn *badger.Txn, user *model.User) error {
	if err := txn.Delete(emailKey(user.Email)); err != nil {
		return err
	}
	return txn.Delete(usernameKey(user.Username))
}
