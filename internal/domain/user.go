package domain

// Roles a user can hold
const (
	RoleUser  = "user"  // Regular player
	RoleAdmin = "admin" // Operator allowed to credit wallets and drive draws
)

// User Model
type User struct {
	ID       uint   `gorm:"primaryKey"`              // Primary key
	Username string `gorm:"size:64;unique;not null"` // Unique username
	Password string `gorm:"not null"`                // Hashed password
	Role     string `gorm:"size:16;default:user"`    // Role: user or admin
	Wallet   Wallet `gorm:"foreignKey:UserID"`       // One-to-one relationship with Wallet, created lazily
}

// Identity is the verified caller handed to the core by the auth boundary
type Identity struct {
	UserID  uint // Authenticated user
	IsAdmin bool // Whether the user may run admin operations
}
