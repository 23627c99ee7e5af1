package role

// Role роль пользователя в системе
type Role int

const (
	Customer Role = iota // 0 - клиент (подписчик)
	Broker               // 1 - консультант брокера
	Admin                // 2 - администратор
)

func (r Role) String() string {
	switch r {
	case Customer:
		return "customer"
	case Broker:
		return "broker"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Valid проверяет, что значение роли из допустимого диапазона
func (r Role) Valid() bool {
	return r >= Customer && r <= Admin
}
