package awsdriver

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/mitchellh/hashstructure/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// describeCacheTTL bounds how long a DescribeInstances page set is
// reused across calls that land on the same (account, region, filter)
// triple — short enough that a stale schedule tag is never visible for
// more than one retry window.
const describeCacheTTL = 10 * time.Second

// filterHash keys the cache with a structural hash of the filter set,
// treating the slice as a set so filter order never causes a miss.
func filterHash(account, region string, filters []types.Filter) uint64 {
	h, err := hashstructure.Hash(struct {
		Account string
		Region  string
		Filters []types.Filter
	}{account, region, filters}, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: true})
	if err != nil {
		return 0
	}
	return h
}

func newDescribeCache() *gocache.Cache {
	return gocache.New(describeCacheTTL, 2*describeCacheTTL)
}

func cachedInstances(c *gocache.Cache, key uint64) ([]model.Instance, bool) {
	v, ok := c.Get(strconv.FormatUint(key, 16))
	if !ok {
		return nil, false
	}
	instances, ok := v.([]model.Instance)
	return instances, ok
}

func storeInstances(c *gocache.Cache, key uint64, instances []model.Instance) {
	c.SetDefault(strconv.FormatUint(key, 16), instances)
}
