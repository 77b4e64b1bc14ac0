package campaign

// Store persists each tenant's campaign list as one unit. The engine
// assumes single-writer access per tenant and performs read-modify-write
// without optimistic concurrency checks.
type Store interface {
	// ListShops returns every known tenant identifier.
	ListShops() ([]string, error)
	// ReadCampaigns returns a tenant's campaigns. An unknown tenant or
	// unreadable state resolves to an empty list, not an error.
	ReadCampaigns(tenant string) ([]Campaign, error)
	// WriteCampaigns replaces a tenant's full campaign list.
	WriteCampaigns(tenant string, campaigns []Campaign) error
}
