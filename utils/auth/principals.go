package auth

import (
	"context"
	"errors"

	"github.com/sahilchouksey/lms-api/model"
	"gorm.io/gorm"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrAccountDisabled   = errors.New("account disabled")
)

// PrincipalStore resolves accounts across the three principal tables. The
// caller picks a portal ("admin", "teacher", "student") or leaves it empty
// to search system users, then teachers, then students.
type PrincipalStore struct {
	db *gorm.DB
}

// NewPrincipalStore wraps an injected database handle
func NewPrincipalStore(db *gorm.DB) *PrincipalStore {
	return &PrincipalStore{db: db}
}

// Login portals accepted by FindByEmail
const (
	PortalAdmin   = "admin"
	PortalTeacher = "teacher"
	PortalStudent = "student"
)

// FindByEmail returns the principal snapshot and its stored password hash.
// Teacher and student emails are unique per tenant, not globally, so those
// lookups take an optional tenant filter; without one the first match wins.
// Not-found and disabled states come back as sentinel errors; handlers must
// collapse both into the same generic response as a bad password.
func (s *PrincipalStore) FindByEmail(ctx context.Context, portal, email string, tenantID *uint) (model.Principal, string, error) {
	switch portal {
	case PortalAdmin:
		return s.findSystemUser(ctx, email)
	case PortalTeacher:
		return s.findTeacher(ctx, email, tenantID)
	case PortalStudent:
		return s.findStudent(ctx, email, tenantID)
	case "":
		if p, hash, err := s.findSystemUser(ctx, email); !errors.Is(err, ErrPrincipalNotFound) {
			return p, hash, err
		}
		if p, hash, err := s.findTeacher(ctx, email, tenantID); !errors.Is(err, ErrPrincipalNotFound) {
			return p, hash, err
		}
		return s.findStudent(ctx, email, tenantID)
	default:
		return model.Principal{}, "", ErrPrincipalNotFound
	}
}

func (s *PrincipalStore) findSystemUser(ctx context.Context, email string) (model.Principal, string, error) {
	var u model.SystemUser
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return model.Principal{}, "", notFoundOr(err)
	}
	return u.Principal(), u.PasswordHash, nil
}

func (s *PrincipalStore) findTeacher(ctx context.Context, email string, tenantID *uint) (model.Principal, string, error) {
	q := s.db.WithContext(ctx).Where("email = ?", email)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var t model.Teacher
	if err := q.Order("tenant_id").First(&t).Error; err != nil {
		return model.Principal{}, "", notFoundOr(err)
	}
	return t.Principal(), t.PasswordHash, nil
}

func (s *PrincipalStore) findStudent(ctx context.Context, email string, tenantID *uint) (model.Principal, string, error) {
	q := s.db.WithContext(ctx).Where("email = ?", email)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var st model.Student
	if err := q.Order("tenant_id").First(&st).Error; err != nil {
		return model.Principal{}, "", notFoundOr(err)
	}
	return st.Principal(), st.PasswordHash, nil
}

// FindByID loads the current principal snapshot for a claims check
func (s *PrincipalStore) FindByID(ctx context.Context, principalType string, id uint) (model.Principal, error) {
	switch principalType {
	case model.PrincipalTypeSystem:
		var u model.SystemUser
		if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
			return model.Principal{}, notFoundOr(err)
		}
		return u.Principal(), nil
	case model.PrincipalTypeTeacher:
		var t model.Teacher
		if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
			return model.Principal{}, notFoundOr(err)
		}
		return t.Principal(), nil
	case model.PrincipalTypeStudent:
		var st model.Student
		if err := s.db.WithContext(ctx).First(&st, id).Error; err != nil {
			return model.Principal{}, notFoundOr(err)
		}
		return st.Principal(), nil
	default:
		return model.Principal{}, ErrPrincipalNotFound
	}
}

// BumpTokenVersion invalidates every outstanding session of a principal by
// incrementing its token version; tokens minted before the bump fail the
// version check in middleware.
func (s *PrincipalStore) BumpTokenVersion(ctx context.Context, principalType string, id uint) error {
	table, err := principalModel(principalType)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(table).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + ?", 1)).
		Error
}

// UpdatePassword stores a new bcrypt hash for the principal
func (s *PrincipalStore) UpdatePassword(ctx context.Context, principalType string, id uint, passwordHash string) error {
	table, err := principalModel(principalType)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(table).
		Where("id = ?", id).
		UpdateColumn("password_hash", passwordHash).
		Error
}

// PasswordHash returns the stored hash for an already-authenticated
// principal, used by the change-password flow to verify the old password
func (s *PrincipalStore) PasswordHash(ctx context.Context, principalType string, id uint) (string, error) {
	table, err := principalModel(principalType)
	if err != nil {
		return "", err
	}
	var hash string
	if err := s.db.WithContext(ctx).
		Model(table).
		Where("id = ?", id).
		Pluck("password_hash", &hash).Error; err != nil {
		return "", err
	}
	if hash == "" {
		return "", ErrPrincipalNotFound
	}
	return hash, nil
}

// UpdateName changes the display name on the principal's own profile
func (s *PrincipalStore) UpdateName(ctx context.Context, principalType string, id uint, name string) error {
	table, err := principalModel(principalType)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(table).
		Where("id = ?", id).
		UpdateColumn("name", name).
		Error
}

func principalModel(principalType string) (interface{}, error) {
	switch principalType {
	case model.PrincipalTypeSystem:
		return &model.SystemUser{}, nil
	case model.PrincipalTypeTeacher:
		return &model.Teacher{}, nil
	case model.PrincipalTypeStudent:
		return &model.Student{}, nil
	default:
		return nil, ErrPrincipalNotFound
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPrincipalNotFound
	}
	return err
}
