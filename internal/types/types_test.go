package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleOrderReturnsCopy(t *testing.T) {
	order := RoleOrder()
	assert.Equal(t, []Role{
		RoleSales20, RoleFunding,
		RoleStd20, RoleRed5, RoleRed4,
		RoleZero, RoleExempt, RoleOS, RoleRCGoods, RoleRCServices,
	}, order)

	order[0], order[2] = order[2], order[0]
	assert.Equal(t, RoleSales20, RoleOrder()[0])

	// Sales still wins over standard rate for a shared flag.
	m := &RateMapping{Std20: "S", Sales20: "s"}
	assert.Equal(t, RoleSales20, m.RoleFor(" S "))
}
