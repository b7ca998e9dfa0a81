package domain

// User roles relevant to stock operations.
const (
	RoleCustomer         = "customer"
	RoleAdmin            = "admin"
	RoleInventoryManager = "inventory_manager"
)

// User identifies an actor on stock adjustments and a recipient for low-stock
// alerts.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AlertRecipientRoles lists the roles that receive low-stock notifications.
func AlertRecipientRoles() []string {
	return []string{RoleAdmin, RoleInventoryManager}
}
