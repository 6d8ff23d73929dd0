package sqlstore

import (
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

func encodeRecord(fields storage.Record) (string, error) {
	data, err := storage.EncodeJSON(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeRecord(id int64, value string) (storage.Record, error) {
	record, err := storage.DecodeJSON([]byte(value))
	if err != nil {
		return nil, errors.WithMessagef(err, "record %d", id)
	}
	record[storage.IDField] = id
	return record, nil
}
