// Package resource defines the fixed allow-list of entity-management
// resources the gateway exposes, and builds the read-only SQL for listing
// and fetching them. The allow-list IS the authorization boundary: a name
// outside it is simply not routable.
package resource

// Resource describes one routable entity collection. Table is the backing
// table in the platform store; EntityIDColumn names the foreign-key column
// the entity_id query filter applies to, empty when the resource has none.
type Resource struct {
	Name           string
	Table          string
	EntityIDColumn string
}

// Registry is the closed set of resources the gateway will route. Adding a
// resource means adding a line here; nothing is discovered at runtime.
var Registry = []Resource{
	{Name: "entities", Table: "entities", EntityIDColumn: ""},
	{Name: "contacts", Table: "contacts", EntityIDColumn: "entity_id"},
	{Name: "addresses", Table: "addresses", EntityIDColumn: "entity_id"},
	{Name: "documents", Table: "documents", EntityIDColumn: "entity_id"},
	{Name: "filings", Table: "filings", EntityIDColumn: "entity_id"},
	{Name: "licenses", Table: "licenses", EntityIDColumn: "entity_id"},
	{Name: "registrations", Table: "registrations", EntityIDColumn: "entity_id"},
	{Name: "owners", Table: "owners", EntityIDColumn: "entity_id"},
	{Name: "officers", Table: "officers", EntityIDColumn: "entity_id"},
	{Name: "directors", Table: "directors", EntityIDColumn: "entity_id"},
	{Name: "shares", Table: "shares", EntityIDColumn: "entity_id"},
	{Name: "share_classes", Table: "share_classes", EntityIDColumn: "entity_id"},
	{Name: "share_transfers", Table: "share_transfers", EntityIDColumn: "entity_id"},
	{Name: "transactions", Table: "transactions", EntityIDColumn: "entity_id"},
	{Name: "invoices", Table: "invoices", EntityIDColumn: "entity_id"},
	{Name: "payments", Table: "payments", EntityIDColumn: "entity_id"},
	{Name: "subscriptions", Table: "subscriptions", EntityIDColumn: "entity_id"},
	{Name: "notes", Table: "notes", EntityIDColumn: "entity_id"},
	{Name: "tasks", Table: "tasks", EntityIDColumn: "entity_id"},
	{Name: "events", Table: "events", EntityIDColumn: "entity_id"},
	{Name: "reminders", Table: "reminders", EntityIDColumn: "entity_id"},
	{Name: "templates", Table: "templates", EntityIDColumn: ""},
	{Name: "reports", Table: "reports", EntityIDColumn: "entity_id"},
	{Name: "jurisdictions", Table: "jurisdictions", EntityIDColumn: ""},
	{Name: "agents", Table: "agents", EntityIDColumn: ""},
	{Name: "service_orders", Table: "service_orders", EntityIDColumn: "entity_id"},
	{Name: "compliance_items", Table: "compliance_items", EntityIDColumn: "entity_id"},
	{Name: "annual_reports", Table: "annual_reports", EntityIDColumn: "entity_id"},
	{Name: "amendments", Table: "amendments", EntityIDColumn: "entity_id"},
	{Name: "name_reservations", Table: "name_reservations", EntityIDColumn: "entity_id"},
}

var byName = func() map[string]Resource {
	m := make(map[string]Resource, len(Registry))
	for _, r := range Registry {
		m[r.Name] = r
	}
	return m
}()

// Lookup resolves a path segment against the allow-list. The second return
// is false for any name outside it.
func Lookup(name string) (Resource, bool) {
	r, ok := byName[name]
	return r, ok
}

// Names returns the allow-list names in registry order.
func Names() []string {
	names := make([]string, len(Registry))
	for i, r := range Registry {
		names[i] = r.Name
	}
	return names
}
