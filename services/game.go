package services

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 房间码字符集，去掉了容易混淆的 0/O/1/I
const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 4
)

// Rand 随机源，测试中注入固定种子
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand 创建并发安全的随机源，seed 为 0 时使用当前时间
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// generateCode 生成房间码
func generateCode(rng Rand) string {
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(CodeAlphabet[rng.Intn(len(CodeAlphabet))])
	}
	return b.String()
}

// NormalizeCode 去掉空白并转为大写后校验房间码
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", fmt.Errorf("%w: 房间码必须是%d位", ErrValidation, CodeLength)
	}
	for _, c := range code {
		if !strings.ContainsRune(CodeAlphabet, c) {
			return "", fmt.Errorf("%w: 房间码包含非法字符 %q", ErrValidation, c)
		}
	}
	return code, nil
}

// normalizeName 校验玩家名称
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: 名称不能为空", ErrValidation)
	}
	if len([]rune(name)) > MaxNameLength {
		return "", fmt.Errorf("%w: 名称不能超过%d个字符", ErrValidation, MaxNameLength)
	}
	return name, nil
}

// MaxNameLength 玩家名称最大长度
const MaxNameLength = 24

func generateID() string {
	return uuid.NewString()
}

func generateBotID() string {
	return "bot_" + uuid.NewString()
}
