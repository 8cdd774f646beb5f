package models

// Panel vendor kinds.
const (
	PanelMarzban     = "marzban"
	PanelMarzneshin  = "marzneshin"
	PanelXUI         = "x-ui"
	PanelSUI         = "s-ui"
	PanelWGDashboard = "wgdashboard"
	PanelMikrotik    = "mikrotik"
)

// Panel maps to the `panels` table. One row per upstream control-plane
// endpoint. Reconciliation never mutates panel rows.
type Panel struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code     string `gorm:"column:code;size:100;uniqueIndex" json:"code"`
	Name     string `gorm:"column:name;size:300" json:"name"`
	Type     string `gorm:"column:type;size:50" json:"type"`
	URL      string `gorm:"column:url;size:1000" json:"url"`
	Username string `gorm:"column:username;size:200" json:"username"`
	// Password doubles as the API key for wgdashboard panels.
	Password string `gorm:"column:password;size:300" json:"-"`
	// Inbound selects a vendor sub-resource: inbound id for x-ui/s-ui,
	// configuration name for wgdashboard, profile name for mikrotik.
	Inbound string `gorm:"column:inbound;size:200" json:"inbound"`
	SubLink string `gorm:"column:sublink;size:1000" json:"sublink"`
	OnHold  bool   `gorm:"column:on_hold;default:false" json:"on_hold"`
	Status  string `gorm:"column:status;size:50;default:'active'" json:"status"`
}

func (Panel) TableName() string {
	return "panels"
}

// IsActive reports whether the panel is enabled for provisioning.
func (p *Panel) IsActive() bool {
	return p.Status == "active"
}
