package paymentrouter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const purchaseMemoParts = 5

// PurchaseMemo annotates a routed payment so indexers can attribute it to a
// piece of content at the block the buyer saw it.
type PurchaseMemo struct {
	ContentType string
	ContentId   string
	BlockNumber uint64
	BuyerId     string
	AccessType  string
}

// String returns contentType:contentId:blockNumber:buyerId:accessType
func (m PurchaseMemo) String() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", m.ContentType, m.ContentId, m.BlockNumber, m.BuyerId, m.AccessType)
}

func (m PurchaseMemo) Validate() error {
	for name, value := range map[string]string{
		"content type": m.ContentType,
		"content id":   m.ContentId,
		"buyer id":     m.BuyerId,
		"access type":  m.AccessType,
	} {
		if len(value) == 0 {
			return errors.Wrapf(ErrInvalidMemo, "%s is empty", name)
		}
		if strings.Contains(value, ":") {
			return errors.Wrapf(ErrInvalidMemo, "%s contains a separator", name)
		}
	}
	return nil
}

func ParsePurchaseMemo(data string) (*PurchaseMemo, error) {
	parts := strings.Split(data, ":")
	if len(parts) != purchaseMemoParts {
		return nil, errors.Wrapf(ErrInvalidMemo, "expected %d parts, got %d", purchaseMemoParts, len(parts))
	}

	blockNumber, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidMemo, "invalid block number")
	}

	m := &PurchaseMemo{
		ContentType: parts[0],
		ContentId:   parts[1],
		BlockNumber: blockNumber,
		BuyerId:     parts[3],
		AccessType:  parts[4],
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
