package services

import (
	"fmt"

	"github.com/qianlnk/mafia/models"
)

// RoleCounts 角色数量分布
type RoleCounts struct {
	Mafia     int
	Doctor    int
	Detective int
	Villager  int
}

// Total 总人数
func (c RoleCounts) Total() int {
	return c.Mafia + c.Doctor + c.Detective + c.Villager
}

// ComputeRoleCounts 根据玩家人数计算角色分布
// 少于10人时黑手党为 max(1, n/5)，否则为 n/4；6人及以上有医生，5人及以上有侦探
func ComputeRoleCounts(n int) (RoleCounts, error) {
	if n < 1 {
		return RoleCounts{}, fmt.Errorf("%w: %d", ErrInsufficientPlayers, n)
	}

	var c RoleCounts
	if n < 10 {
		c.Mafia = max(1, n/5)
	} else {
		c.Mafia = n / 4
	}
	if n >= 6 {
		c.Doctor = 1
	}
	if n >= 5 {
		c.Detective = 1
	}
	c.Villager = n - c.Mafia - c.Doctor - c.Detective
	return c, nil
}

// AssignRoles 打乱玩家顺序后依次分配黑手党、医生、侦探，其余为村民
func AssignRoles(playerIDs []string, rng Rand) (map[string]models.Role, error) {
	counts, err := ComputeRoleCounts(len(playerIDs))
	if err != nil {
		return nil, err
	}

	order := append([]string(nil), playerIDs...)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	roles := make(map[string]models.Role, len(order))
	for i, id := range order {
		switch {
		case i < counts.Mafia:
			roles[id] = models.Mafia
		case i < counts.Mafia+counts.Doctor:
			roles[id] = models.Doctor
		case i < counts.Mafia+counts.Doctor+counts.Detective:
			roles[id] = models.Detective
		default:
			roles[id] = models.Villager
		}
	}
	return roles, nil
}
