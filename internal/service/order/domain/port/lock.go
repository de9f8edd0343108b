package port

import "context"

// Locker 按 key 互斥，返回的 unlock 必须被调用
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
