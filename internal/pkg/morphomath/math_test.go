package morphomath

import (
	"math/big"
	"testing"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad int " + s)
	}
	return v
}

func TestToAssets_Rounding(t *testing.T) {
	tests := []struct {
		name        string
		shares      *big.Int
		totalAssets *big.Int
		totalShares *big.Int
		wantDown    string
		wantUp      string
	}{
		{"exact", big.NewInt(50), big.NewInt(200), big.NewInt(100), "100", "100"},
		{"fractional", big.NewInt(100), big.NewInt(1000), big.NewInt(300), "333", "334"},
		{"zero shares", big.NewInt(0), big.NewInt(1000), big.NewInt(300), "0", "0"},
		{"empty market", big.NewInt(10), big.NewInt(0), big.NewInt(0), "0", "0"},
		{"nil shares", nil, big.NewInt(1000), big.NewInt(300), "0", "0"},
		{
			"beyond uint256 intermediate",
			bi("115792089237316195423570985008687907853269984665640564039457584007913129639935"),
			big.NewInt(3),
			big.NewInt(2),
			"173688133855974293135356477513031861779904976998460846059186376011869694459902",
			"173688133855974293135356477513031861779904976998460846059186376011869694459903",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToAssetsDown(tt.shares, tt.totalAssets, tt.totalShares); got.String() != tt.wantDown {
				t.Errorf("ToAssetsDown = %s, want %s", got, tt.wantDown)
			}
			if got := ToAssetsUp(tt.shares, tt.totalAssets, tt.totalShares); got.String() != tt.wantUp {
				t.Errorf("ToAssetsUp = %s, want %s", got, tt.wantUp)
			}
		})
	}
}

func TestToSharesDown(t *testing.T) {
	if got := ToSharesDown(big.NewInt(10), big.NewInt(30), big.NewInt(100)); got.Int64() != 33 {
		t.Errorf("ToSharesDown = %s, want 33", got)
	}
	if got := ToSharesDown(big.NewInt(10), big.NewInt(0), big.NewInt(100)); got.Sign() != 0 {
		t.Errorf("ToSharesDown with no assets = %s, want 0", got)
	}
}

func TestWTaylorCompounded(t *testing.T) {
	// x*n = 1e12, (x*n)^2 / 2e18 = 5e5, cubic term rounds to zero.
	got := WTaylorCompounded(big.NewInt(1_000_000_000), 1000)
	if got.String() != "1000000500000" {
		t.Errorf("WTaylorCompounded = %s, want 1000000500000", got)
	}
	if WTaylorCompounded(big.NewInt(1_000_000_000), 0).Sign() != 0 {
		t.Error("zero elapsed should compound to zero")
	}
}

func testMarket() Market {
	return Market{
		TotalSupplyAssets: bi("2000000000000000000000"),
		TotalSupplyShares: bi("2000000000000000000000000000"),
		TotalBorrowAssets: bi("1000000000000000000000"),
		TotalBorrowShares: bi("1000000000000000000000000000"),
		LastUpdate:        1_700_000_000,
		Fee:               big.NewInt(0),
	}
}

func TestAccrue_AddsInterestToBothSides(t *testing.T) {
	m := testMarket()
	out := Accrue(m, big.NewInt(1_000_000_000), m.LastUpdate+1000)

	interest := bi("1000000500000000")
	wantBorrow := new(big.Int).Add(m.TotalBorrowAssets, interest)
	wantSupply := new(big.Int).Add(m.TotalSupplyAssets, interest)

	if out.TotalBorrowAssets.Cmp(wantBorrow) != 0 {
		t.Errorf("TotalBorrowAssets = %s, want %s", out.TotalBorrowAssets, wantBorrow)
	}
	if out.TotalSupplyAssets.Cmp(wantSupply) != 0 {
		t.Errorf("TotalSupplyAssets = %s, want %s", out.TotalSupplyAssets, wantSupply)
	}
	if out.TotalSupplyShares.Cmp(m.TotalSupplyShares) != 0 {
		t.Errorf("no fee: TotalSupplyShares changed to %s", out.TotalSupplyShares)
	}
	if out.LastUpdate != m.LastUpdate+1000 {
		t.Errorf("LastUpdate = %d, want %d", out.LastUpdate, m.LastUpdate+1000)
	}
	if m.TotalBorrowAssets.String() != "1000000000000000000000" {
		t.Errorf("input state was mutated: %s", m.TotalBorrowAssets)
	}
}

func TestAccrue_MintsFeeShares(t *testing.T) {
	m := testMarket()
	m.Fee = bi("100000000000000000") // 10%

	out := Accrue(m, big.NewInt(1_000_000_000), m.LastUpdate+1000)
	if out.TotalSupplyShares.Cmp(m.TotalSupplyShares) <= 0 {
		t.Errorf("fee shares not minted: %s", out.TotalSupplyShares)
	}
	if out.TotalBorrowShares.Cmp(m.TotalBorrowShares) != 0 {
		t.Errorf("borrow shares must not change, got %s", out.TotalBorrowShares)
	}
}

func TestAccrue_NoOp(t *testing.T) {
	m := testMarket()
	tests := []struct {
		name string
		rate *big.Int
		now  uint64
	}{
		{"nil rate", nil, m.LastUpdate + 100},
		{"zero rate", big.NewInt(0), m.LastUpdate + 100},
		{"same timestamp", big.NewInt(1_000_000_000), m.LastUpdate},
		{"clock behind", big.NewInt(1_000_000_000), m.LastUpdate - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Accrue(m, tt.rate, tt.now)
			if out.TotalBorrowAssets.Cmp(m.TotalBorrowAssets) != 0 || out.TotalSupplyAssets.Cmp(m.TotalSupplyAssets) != 0 {
				t.Errorf("state changed: borrow=%s supply=%s", out.TotalBorrowAssets, out.TotalSupplyAssets)
			}
			if out.LastUpdate != m.LastUpdate {
				t.Errorf("LastUpdate = %d, want %d", out.LastUpdate, m.LastUpdate)
			}
		})
	}
}
