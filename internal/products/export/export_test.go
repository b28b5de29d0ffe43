package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"farmtrace/marketplace-backend/internal/catalog"
)

func sampleProducts() []catalog.Product {
	note := "Đạt chuẩn VietGAP"
	by := "Trần Thị B"
	at := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	return []catalog.Product{
		{
			ID:         "p-2",
			FarmerName: "Nguyễn Văn A",
			Name:       "Cà chua",
			Category:   catalog.CategoryVegetable,
			RegionCode: "PUC-LD-01",
			Area:       1.5,
			Location:   catalog.Location{Lat: 11.94, Lng: 108.44, Address: "Đà Lạt, Lâm Đồng"},
			Timeline: []catalog.TimelineEntry{
				{Date: "2024-03-01", Stage: "Gieo hạt", Description: "Ươm giống trong nhà kính"},
				{Date: "2024-04-15", Stage: "Bón phân", Description: "Phân hữu cơ"},
			},
			Certificates: []catalog.Certificate{{Type: "VietGAP", ExpiryDate: "2026-01-01"}},
			Verification: catalog.Verification{
				Status:     catalog.StatusApproved,
				Note:       &note,
				VerifiedAt: &at,
				VerifiedBy: &by,
			},
			SubmittedAt: at.Add(-48 * time.Hour),
		},
		{
			ID:           "p-1",
			FarmerName:   "Lê C",
			Name:         "Xoài cát",
			Category:     catalog.CategoryFruit,
			Location:     catalog.Location{Lat: 10.36, Lng: 106.36, Address: "Tiền Giang"},
			Verification: catalog.Verification{Status: catalog.StatusPending},
			SubmittedAt:  at.Add(-72 * time.Hour),
		},
	}
}

func TestExportProducts_WritesRowsInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportProducts(&buf, sampleProducts()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns(), rows[0])

	assert.Equal(t, "p-2", rows[1][0])
	assert.Equal(t, "Cà chua", rows[1][1])
	assert.Equal(t, "APPROVED", rows[1][10])
	assert.Equal(t, "Trần Thị B", rows[1][11])
	assert.Equal(t, "2024-05-02 09:30", rows[1][12])
	assert.Equal(t, "Đạt chuẩn VietGAP", rows[1][13])

	assert.Equal(t, "p-1", rows[2][0])
	assert.Equal(t, "PENDING", rows[2][10])
}

func TestExportProducts_EmptySetHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportProducts(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteTraceability(t *testing.T) {
	products := sampleProducts()

	var buf bytes.Buffer
	require.NoError(t, WriteTraceability(&buf, &products[0], time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	buf.Reset()
	require.NoError(t, WriteTraceability(&buf, &products[1], time.Now()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestASCIIFold(t *testing.T) {
	assert.Equal(t, "Da Lat, Lam Dong", ASCIIFold("Đà Lạt, Lâm Đồng"))
	assert.Equal(t, "Truy xuat nguon goc", ASCIIFold("Truy xuất nguồn gốc"))
	assert.Equal(t, "plain", ASCIIFold("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestWriteProductsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProductsCSV(&buf, sampleProducts(), DefaultCSVOptions()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Columns(), records[0])
	assert.Equal(t, "Đà Lạt, Lâm Đồng", records[1][5])
	assert.Equal(t, "11.94", records[1][6])
	assert.Equal(t, "1.5", records[1][8])
	assert.Equal(t, "", records[2][11])
}
