package ds

// Пользователи (клиенты личного кабинета и сотрудники брокера)
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Email    string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Password string `gorm:"type:varchar(255);not null"`
	FullName string `gorm:"type:varchar(100)"`
	Phone    string `gorm:"type:varchar(20)"`
	Role     int    `gorm:"type:int;default:0;not null"` // role.Role
}
