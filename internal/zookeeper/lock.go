// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"marketplace/internal/pkg/logger"
)

const (
	lockRoot    = "/marketplace_locks" // 所有分布式锁的根节点
	lockPrefix  = "lock-"
	seqLen      = 10 // ZooKeeper 顺序节点后缀固定为 10 位
	waitTimeout = 30 * time.Second
)

// Conn 是锁用到的 ZooKeeper 操作子集，*zk.Conn 天然满足。
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect 建立 ZooKeeper 会话。
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect zookeeper %v: %w", servers, err)
	}
	return conn, nil
}

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     Conn
	path     string // 锁的路径，例如 /marketplace_locks/checkout-42
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，并确保父节点存在。
func NewDistributedLock(conn Conn, resourceID string) (*DistributedLock, error) {
	lockPath := path.Join(lockRoot, resourceID)
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensureNode(conn, p); err != nil {
			return nil, err
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensureNode(conn Conn, p string) error {
	exists, _, err := conn.Exists(p)
	if err != nil {
		return fmt.Errorf("failed to check node %s: %w", p, err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create node %s: %w", p, err)
	}
	return nil
}

// Lock 尝试获取锁，获取不到则阻塞等待，直到 ctx 结束或超时。
func (l *DistributedLock) Lock(ctx context.Context) error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.createNode()
	if err != nil {
		return err
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")

	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()

	for {
		// 2. 获取锁路径下的所有子节点，按顺序号排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sortBySequence(children)

		// 3. 判断自己是否是最小的节点
		idx := indexOf(children, myNodeName)
		if idx < 0 {
			l.abandon()
			return errors.New("lock node disappeared, session may have expired")
		}
		if idx == 0 {
			return nil
		}

		// 4. 不是最小节点，监听前一个节点
		prevNodePath := l.path + "/" + children[idx-1]
		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			if errors.Is(err, zk.ErrNoNode) {
				continue
			}
			l.abandon()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
			// 前一个节点有变化，重新竞争
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		case <-timer.C:
			l.abandon()
			return errors.New("timeout waiting for lock")
		}
	}
}

// createNode 创建顺序节点；父节点可能刚被其他持有者清理掉，此时重建后重试
func (l *DistributedLock) createNode() (string, error) {
	for attempt := 0; ; attempt++ {
		nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/"+lockPrefix, []byte(""), zk.WorldACL(zk.PermAll))
		if err == nil {
			return nodePath, nil
		}
		if !errors.Is(err, zk.ErrNoNode) || attempt >= 3 {
			return "", fmt.Errorf("failed to create sequential node: %w", err)
		}
		if err := ensureNode(l.conn, l.path); err != nil {
			return "", err
		}
	}
}

// Unlock 释放锁，并在没有等待者时删除该资源的父节点
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	l.removeParent()
	return nil
}

// removeParent 仍有子节点时 ZooKeeper 会拒绝删除，这正是期望的行为
func (l *DistributedLock) removeParent() {
	err := l.conn.Delete(l.path, -1)
	if err != nil && !errors.Is(err, zk.ErrNotEmpty) && !errors.Is(err, zk.ErrNoNode) {
		logger.Ctx(context.Background()).Warn().Err(err).Str("path", l.path).Msg("failed to remove lock parent node")
	}
}

func (l *DistributedLock) abandon() {
	_ = l.Unlock()
}

// Locker 按资源 key 获取分布式锁。
type Locker struct {
	conn Conn
}

func NewLocker(conn Conn) *Locker {
	return &Locker{conn: conn}
}

func (z *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l, err := NewDistributedLock(z.conn, key)
	if err != nil {
		return nil, err
	}
	if err := l.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := l.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to release zookeeper lock")
		}
	}, nil
}

// CreateProtectedEphemeralSequential 会在节点名前加上 _c_<guid>- 前缀，
// 所以只能按末尾的顺序号排序。
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
}

func sequenceOf(node string) string {
	if len(node) <= seqLen {
		return node
	}
	return node[len(node)-seqLen:]
}

func indexOf(children []string, name string) int {
	for i, c := range children {
		if c == name {
			return i
		}
	}
	return -1
}
