package collection

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-dist/meridian/internal/sales"
	"github.com/meridian-dist/meridian/internal/shared"
)

func TestReceivableFilterDefaultsFromClock(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	r := httptest.NewRequest("GET", "/pending", nil)

	filter, err := receivableFilterFromQuery(r, now)
	require.NoError(t, err)
	require.True(t, filter.StartDate.Equal(now.AddDate(0, 0, -30)))
	require.True(t, filter.EndDate.Equal(now.AddDate(0, 0, 1)))
	require.Nil(t, filter.ClientID)
	require.Nil(t, filter.SellerID)
	require.Nil(t, filter.SaleStatus)
}

func TestReceivableFilterParsesQuery(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	r := httptest.NewRequest("GET",
		"/history?start_date=2025-05-01&end_date=2025-05-31&client_id=11&seller_id=7&sale_status=DELIVERED", nil)

	filter, err := receivableFilterFromQuery(r, now)
	require.NoError(t, err)
	require.True(t, filter.StartDate.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))
	// End date is inclusive.
	require.True(t, filter.EndDate.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, int64(11), *filter.ClientID)
	require.Equal(t, int64(7), *filter.SellerID)
	require.Equal(t, sales.StatusDelivered, *filter.SaleStatus)
}

func TestReceivableFilterRejectsBadInput(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for _, query := range []string{
		"start_date=soon",
		"end_date=2025-13-99",
		"client_id=abc",
		"seller_id=-1",
	} {
		r := httptest.NewRequest("GET", "/pending?"+query, nil)
		_, err := receivableFilterFromQuery(r, now)
		require.True(t, shared.IsKind(err, shared.KindValidation), query)
	}
}
