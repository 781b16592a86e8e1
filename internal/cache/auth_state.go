package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// UserAuthState 校验 Token 所需的用户快照，避免每个请求回源数据库
// InvalidBefore 为 Unix 秒，0 表示未设置
type UserAuthState struct {
	UserID        uint   `json:"user_id"`
	Email         string `json:"email"`
	Status        string `json:"status"`
	TokenVersion  uint64 `json:"token_version"`
	InvalidBefore int64  `json:"invalid_before"`
}

func userAuthStateKey(userID uint) string {
	return "auth:user:" + strconv.FormatUint(uint64(userID), 10)
}

// BuildUserAuthState 从用户模型构建快照
func BuildUserAuthState(user *models.User) *UserAuthState {
	if user == nil {
		return nil
	}
	state := &UserAuthState{
		UserID:       user.ID,
		Email:        user.Email,
		Status:       user.Status,
		TokenVersion: user.TokenVersion,
	}
	if user.TokenInvalidBefore != nil {
		state.InvalidBefore = user.TokenInvalidBefore.Unix()
	}
	return state
}

// Active 账号是否可用
func (s *UserAuthState) Active() bool {
	return s != nil && s.Status == constants.UserStatusActive
}

// AcceptsToken Token 版本一致且签发时间不早于失效点
func (s *UserAuthState) AcceptsToken(version uint64, issuedAt time.Time) bool {
	if s == nil || s.TokenVersion != version {
		return false
	}
	if s.InvalidBefore > 0 && !issuedAt.IsZero() && issuedAt.Unix() < s.InvalidBefore {
		return false
	}
	return true
}

// GetUserAuthState 读取快照，第二个返回值表示是否命中
func GetUserAuthState(ctx context.Context, userID uint) (*UserAuthState, bool, error) {
	if userID == 0 {
		return nil, false, nil
	}
	var state UserAuthState
	hit, err := GetJSON(ctx, userAuthStateKey(userID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetUserAuthState 写入快照，资料或密码变更后调用
func SetUserAuthState(ctx context.Context, state *UserAuthState) error {
	if state == nil || state.UserID == 0 {
		return nil
	}
	return SetJSON(ctx, userAuthStateKey(state.UserID), state, authStateCacheTTL)
}

// DelUserAuthState 删除快照
func DelUserAuthState(ctx context.Context, userID uint) error {
	if userID == 0 {
		return nil
	}
	return Del(ctx, userAuthStateKey(userID))
}
