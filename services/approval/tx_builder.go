package approval

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// approveABIJSON 授权协议只编码 approve 一个方法
const approveABIJSON = `[
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var approveABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(approveABIJSON))
	if err != nil {
		panic(fmt.Sprintf("parse approve abi: %v", err))
	}
	return parsed
}()

// packApprove 编码 approve(spender, amount)
func packApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := approveABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}
