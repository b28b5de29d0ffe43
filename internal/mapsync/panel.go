package mapsync

import (
	"fmt"
	"net/url"
	"strings"

	"farmtrace/marketplace-backend/internal/catalog"
)

// DetailPanel is what the map shows for the selected product
type DetailPanel struct {
	ProductID    string                `json:"product_id"`
	Name         string                `json:"name"`
	FarmerName   string                `json:"farmer_name"`
	Address      string                `json:"address"`
	RegionCode   string                `json:"region_code"`
	Image        string                `json:"image,omitempty"`
	Rating       *float64              `json:"rating,omitempty"`
	Certificates []catalog.Certificate `json:"certificates"`
	ContactURL   string                `json:"contact_url,omitempty"`
	ExternalURL  string                `json:"external_url"`
}

func newDetailPanel(p *catalog.Product, resolveImage func(string) string) DetailPanel {
	panel := DetailPanel{
		ProductID:    p.ID,
		Name:         p.Name,
		FarmerName:   p.FarmerName,
		Address:      p.Location.Address,
		RegionCode:   p.RegionCode,
		Rating:       p.Rating,
		Certificates: append([]catalog.Certificate{}, p.Certificates...),
		ContactURL:   contactURL(p.Contact),
		ExternalURL:  externalMapURL(p.Location),
	}
	if len(p.Images.Product) > 0 {
		panel.Image = p.Images.Product[0]
		if resolveImage != nil {
			panel.Image = resolveImage(panel.Image)
		}
	}
	return panel
}

func contactURL(contact string) string {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return ""
	}
	return "tel:" + strings.ReplaceAll(contact, " ", "")
}

func externalMapURL(loc catalog.Location) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", fmt.Sprintf("%f,%f", loc.Lat, loc.Lng))
	return "https://www.google.com/maps/search/?" + q.Encode()
}
