package testutil

import (
	"fmt"
	"sort"
	"strings"
)

// ProportionalCSV is a two product, two period panel in which every price
// rises by 50%, so any sensible index for period 2 is 1.5.
const ProportionalCSV = `id,month,price,quantity
A,1,2,10
B,1,4,5
A,2,3,10
B,2,6,2
`

// HedonicCSV carries a categorical characteristic that identifies the product
const HedonicCSV = `id,month,price,quantity,model
A,1,2,10,alpha
B,1,4,5,beta
C,1,3,1,gamma
A,2,2.2,8,alpha
B,2,4.6,5,beta
C,2,3.1,3,gamma
A,3,2.5,7,alpha
C,3,2.9,4,gamma
`

// GroupedCSV has two regions, each a complete two period panel
const GroupedCSV = `id,month,price,quantity,region
A,1,2,10,north
B,1,4,5,north
A,2,3,10,north
B,2,6,2,north
A,1,5,1,south
B,1,10,1,south
A,2,5.5,1,south
B,2,11,1,south
`

// MultiplicativeCSV builds a panel with price = product level * period
// level, so a time product dummy index recovers periodLevels exactly.
func MultiplicativeCSV(productLevels map[string]float64, periodLevels []float64) string {
	ids := make([]string, 0, len(productLevels))
	for id := range productLevels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("id,month,price,quantity\n")
	qty := 1
	for period, level := range periodLevels {
		for _, id := range ids {
			fmt.Fprintf(&b, "%s,%d,%.10f,%d\n", id, period+1, productLevels[id]*level, qty)
			qty = qty%5 + 1
		}
	}
	return b.String()
}
