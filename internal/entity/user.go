package entity

// User represents a registered user. For the chat core it is only the
// directory of ids and display names.
type User struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Username  string `json:"username" gorm:"column:username;size:64;uniqueIndex:uk_users_username"`
	Password  string `json:"-" gorm:"column:password;size:255"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// UserInfo represents public user info (without password)
type UserInfo struct {
	Id        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
}

// ToUserInfo converts User to UserInfo
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		Id:        u.Id,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
