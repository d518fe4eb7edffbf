package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Byak-ko/Qualification-work-sub001/internal/models"
	"github.com/Byak-ko/Qualification-work-sub001/internal/utils"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned by Authenticate for any unknown email or
// wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type CreateUserInput struct {
	Email        string          `json:"email" binding:"required,email"`
	Password     string          `json:"password" binding:"required,min=8"`
	FirstName    string          `json:"first_name" binding:"required"`
	LastName     string          `json:"last_name" binding:"required"`
	Role         models.UserRole `json:"role"`
	Degree       string          `json:"degree"`
	Position     string          `json:"position"`
	IsAuthor     bool            `json:"is_author"`
	DepartmentID *uint           `json:"department_id"`
}

type UserFilter struct {
	DepartmentID uint
	UnitID       uint
	Query        string
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.RoleTeacher
	}
	if role != models.RoleAdmin && role != models.RoleTeacher {
		return nil, badRequest("INVALID_ROLE", "role must be ADMIN or TEACHER", nil)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Role:         role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Degree:       strings.TrimSpace(in.Degree),
		Position:     strings.TrimSpace(in.Position),
		IsAuthor:     in.IsAuthor,
		DepartmentID: in.DepartmentID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("EMAIL_TAKEN", "email already exists")
		}
		if in.DepartmentID != nil {
			var department models.Department
			if err := tx.First(&department, *in.DepartmentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return badRequest("UNKNOWN_DEPARTMENT", "department does not exist", nil)
				}
				return err
			}
		}
		return tx.Omit("Department").Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.ID)
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Department.Unit").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Preload("Department.Unit")
	if filter.DepartmentID != 0 {
		q = q.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.UnitID != 0 {
		q = q.Where("department_id IN (?)",
			s.db.Model(&models.Department{}).Select("id").Where("unit_id = ?", filter.UnitID))
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?)", like, like, like)
	}

	var users []models.User
	err := q.Order("last_name asc, first_name asc, id asc").Find(&users).Error
	return users, err
}

// Authenticate checks an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *UserService) CreateUnit(ctx context.Context, name string) (*models.Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, badRequest("VALIDATION_ERROR", "name is required", nil)
	}

	unit := models.Unit{Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Unit{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("UNIT_EXISTS", "unit already exists")
		}
		return tx.Create(&unit).Error
	})
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (s *UserService) CreateDepartment(ctx context.Context, name string, unitID uint) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, badRequest("VALIDATION_ERROR", "name is required", nil)
	}

	department := models.Department{Name: name, UnitID: unitID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unit models.Unit
		if err := tx.First(&unit, unitID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return badRequest("UNKNOWN_UNIT", "unit does not exist", nil)
			}
			return err
		}
		var count int64
		if err := tx.Model(&models.Department{}).Where("name = ? AND unit_id = ?", name, unitID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("DEPARTMENT_EXISTS", "department already exists in this unit")
		}
		if err := tx.Omit("Unit").Create(&department).Error; err != nil {
			return err
		}
		department.Unit = &unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &department, nil
}

func (s *UserService) ListUnits(ctx context.Context) ([]models.Unit, error) {
	var units []models.Unit
	err := s.db.WithContext(ctx).
		Preload("Departments", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		Order("name asc").
		Find(&units).Error
	return units, err
}

func (s *UserService) ListDepartments(ctx context.Context, unitID uint) ([]models.Department, error) {
	q := s.db.WithContext(ctx).Preload("Unit")
	if unitID != 0 {
		q = q.Where("unit_id = ?", unitID)
	}
	var departments []models.Department
	err := q.Order("name asc").Find(&departments).Error
	return departments, err
}
