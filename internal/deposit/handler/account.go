package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"coinport.io/internal/deposit/domain"
	"coinport.io/internal/deposit/service"
	"coinport.io/pkg/common"
	"coinport.io/pkg/xerr"
)

type Account struct {
	balances    *service.BalanceService
	provisioner *service.Provisioner
}

func NewAccount(balances *service.BalanceService, provisioner *service.Provisioner) *Account {
	return &Account{
		balances:    balances,
		provisioner: provisioner,
	}
}

// Balance GET /api/accounts/:account_id/balance
func (h *Account) Balance(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, "account_id 不能为空")
		return
	}

	balance, err := h.balances.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		if xerr.Code(err) == xerr.RecordNotFound {
			common.Fail(c, http.StatusNotFound, xerr.RecordNotFound, "账户不存在")
			return
		}
		common.FailLogged(c, http.StatusInternalServerError, xerr.DbError, "查询余额失败", err)
		return
	}
	common.Success(c, balance)
}

// ProvisionAddress POST /api/accounts/:account_id/deposit-address
// 幂等：重复调用返回同一个地址
func (h *Account) ProvisionAddress(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, "account_id 不能为空")
		return
	}

	addr, err := h.provisioner.GetOrCreateAddress(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrMissingAccount) {
			common.Fail(c, http.StatusNotFound, xerr.MissingAccount, "账户不存在")
			return
		}
		if xerr.Code(err) == xerr.RequestParamsError {
			common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, err.Error())
			return
		}
		common.FailLogged(c, http.StatusInternalServerError, xerr.DbError, "地址开通失败", err)
		return
	}
	common.Success(c, addr)
}
