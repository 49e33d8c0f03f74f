package model

import "time"

// 役割。上位の役割は下位の操作をすべて行える。
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleWorker     Role = "WORKER"
	RoleRequester  Role = "REQUESTER"
)

var roleRank = map[Role]int{
	RoleRequester:  0,
	RoleWorker:     1,
	RoleSupervisor: 2,
	RoleSuperAdmin: 3,
}

// AtLeastはminの役割以上かどうか。未知の役割は常にfalse。
func (r Role) AtLeast(min Role) bool {
	got, ok := roleRank[r]
	if !ok {
		return false
	}
	want, ok := roleRank[min]
	if !ok {
		return false
	}
	return got >= want
}

// 認証基盤（外部）のユーザーに紐づく表示用プロフィール。
// IDは認証側が発行するsubjectをそのまま使う。
type Profile struct {
	ID    string `gorm:"type:uuid;primaryKey" json:"id"`
	Email string `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Name  string `gorm:"type:varchar(255)" json:"name"`
	Role  Role   `gorm:"type:varchar(20);not null;default:'REQUESTER'" json:"role"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 操作者。JWTのclaimsから組み立て、全usecaseへ明示的に渡す
// （ambientなセッション状態は持たない）。
type Principal struct {
	ID    string
	Email string
	Role  Role
}
