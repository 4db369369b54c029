package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"forexTradeBot/internal/domain"
)

// WritePricePointsToCSV writes a price series to a CSV file with a header
// row, one point per line.
func WritePricePointsToCSV(points []domain.PricePoint, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"timestamp", "pair", "bid", "ask"})
	for _, p := range points {
		writer.Write([]string{
			p.Timestamp.Format(time.RFC3339),
			p.Pair.String(),
			strconv.FormatFloat(p.Bid, 'f', -1, 64),
			strconv.FormatFloat(p.Ask, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadPricePointsFromCSV loads a price series written by
// WritePricePointsToCSV. Points come back in file order.
func ReadPricePointsFromCSV(filename string) ([]domain.PricePoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	points := make([]domain.PricePoint, 0, len(records)-1)
	for i, record := range records[1:] { // skip header
		if len(record) != 4 {
			return nil, fmt.Errorf("line %d: want 4 columns, got %d", i+2, len(record))
		}
		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp: %w", i+2, err)
		}
		pair, err := domain.ParsePair(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		bid, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid bid: %w", i+2, err)
		}
		ask, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid ask: %w", i+2, err)
		}
		points = append(points, domain.PricePoint{Pair: pair, Timestamp: ts, Bid: bid, Ask: ask})
	}
	return points, nil
}
