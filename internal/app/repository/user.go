package repository

import (
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/role"
)

// Методы для пользователей (ORM)

func (r *Repository) GetUserByID(id uint) (*ds.User, error) {
	var user ds.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(email string) (*ds.User, error) {
	var user ds.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *Repository) UserExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&ds.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateUser(email, password, fullName string, userRole role.Role) (*ds.User, error) {
	user := ds.User{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     int(userRole),
	}

	err := r.db.Create(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateUser обновляет только переданные поля
func (r *Repository) UpdateUser(id uint, fullName, password, phone *string) error {
	updates := map[string]interface{}{}
	if fullName != nil {
		updates["full_name"] = *fullName
	}
	if password != nil {
		updates["password"] = *password
	}
	if phone != nil {
		updates["phone"] = *phone
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.Model(&ds.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
