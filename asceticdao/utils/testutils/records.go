package testutils

import (
	"syreclabs.com/go/faker"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

// FakePeople generates n person records with a nested employer.
func FakePeople(n int) []storage.Record {
	records := make([]storage.Record, n)
	for i := range records {
		records[i] = FakePerson()
	}
	return records
}

func FakePerson() storage.Record {
	return storage.Record{
		"name":  faker.Name().FirstName(),
		"email": faker.Internet().Email(),
		"age":   int64(faker.RandomInt(18, 80)),
		"employer": map[string]any{
			"name":    faker.Company().Name(),
			"country": faker.Address().Country(),
		},
	}
}
