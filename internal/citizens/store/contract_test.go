package store_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"census/internal/citizens/models"
	"census/internal/citizens/store"
)

type importStore interface {
	ListImportIDs(ctx context.Context) ([]int64, error)
	ImportExists(ctx context.Context, importID int64) (bool, error)
	CreateImport(ctx context.Context, citizens []models.Citizen) (int64, error)
	GetCitizen(ctx context.Context, importID, citizenID int64) (*models.Citizen, error)
	ListCitizens(ctx context.Context, importID int64) ([]models.Citizen, error)
	CitizenExists(ctx context.Context, importID, citizenID int64) (bool, error)
	UpdateCitizen(ctx context.Context, importID int64, citizen models.Citizen) error
	Ping(ctx context.Context) error
}

// contractSuite exercises behaviour every backend shares. Embedding suites set
// store in SetupTest after resetting the backend.
type contractSuite struct {
	suite.Suite
	store importStore
}

func sampleCitizens() []models.Citizen {
	return []models.Citizen{
		{
			ID: 3, Town: "Керчь", Street: "Иосифа Бродского", Building: "2", Apartment: 11,
			Name: "Романова Мария Леонидовна", BirthDate: models.NewDate(1986, time.November, 23),
			Gender: models.GenderFemale, Relatives: []int64{},
		},
		{
			ID: 1, Town: "Москва", Street: "Льва Толстого", Building: "16к7стр5", Apartment: 7,
			Name: "Иванов Иван Иванович", BirthDate: models.NewDate(1986, time.December, 26),
			Gender: models.GenderMale, Relatives: []int64{2},
		},
		{
			ID: 2, Town: "Москва", Street: "Льва Толстого", Building: "16к7стр5", Apartment: 7,
			Name: "Иванов Сергей Иванович", BirthDate: models.NewDate(1997, time.April, 1),
			Gender: models.GenderMale, Relatives: []int64{1},
		},
	}
}

func (s *contractSuite) TestCreateAssignsSequentialIDs() {
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		id, err := s.store.CreateImport(ctx, sampleCitizens()[:want])
		s.Require().NoError(err)
		s.Equal(want, id)
	}

	ids, err := s.store.ListImportIDs(ctx)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 3}, ids)
}

func (s *contractSuite) TestRoundTripSortedByID() {
	ctx := context.Background()
	id, err := s.store.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)

	got, err := s.store.ListCitizens(ctx, id)
	s.Require().NoError(err)
	s.Require().Len(got, 3)

	want := sampleCitizens()
	s.Equal(want[1], got[0])
	s.Equal(want[2], got[1])
	s.Equal(want[0], got[2])
}

func (s *contractSuite) TestMissingImport() {
	ctx := context.Background()

	exists, err := s.store.ImportExists(ctx, 42)
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.store.ListCitizens(ctx, 42)
	s.ErrorIs(err, store.ErrNotFound)

	_, err = s.store.GetCitizen(ctx, 42, 1)
	s.ErrorIs(err, store.ErrNotFound)

	s.ErrorIs(s.store.UpdateCitizen(ctx, 42, sampleCitizens()[0]), store.ErrNotFound)
}

func (s *contractSuite) TestGetAndExists() {
	ctx := context.Background()
	id, err := s.store.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)

	c, err := s.store.GetCitizen(ctx, id, 1)
	s.Require().NoError(err)
	s.Equal(sampleCitizens()[1], *c)

	exists, err := s.store.CitizenExists(ctx, id, 2)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.CitizenExists(ctx, id, 9)
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.store.GetCitizen(ctx, id, 9)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *contractSuite) TestUpdateReplacesCitizen() {
	ctx := context.Background()
	id, err := s.store.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)

	updated := sampleCitizens()[1]
	updated.Name = "Иванова Мария Леонидовна"
	updated.Relatives = []int64{}
	s.Require().NoError(s.store.UpdateCitizen(ctx, id, updated))

	got, err := s.store.GetCitizen(ctx, id, 1)
	s.Require().NoError(err)
	s.Equal(updated, *got)
}

func (s *contractSuite) TestUpdateUnknownCitizen() {
	ctx := context.Background()
	id, err := s.store.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)

	stranger := sampleCitizens()[0]
	stranger.ID = 99
	s.ErrorIs(s.store.UpdateCitizen(ctx, id, stranger), store.ErrNotFound)

	exists, err := s.store.CitizenExists(ctx, id, 99)
	s.Require().NoError(err)
	s.False(exists)
}

func (s *contractSuite) TestDuplicateCitizenIDConflicts() {
	batch := append(sampleCitizens(), sampleCitizens()[0])
	_, err := s.store.CreateImport(context.Background(), batch)
	s.ErrorIs(err, store.ErrConflict)
}

func (s *contractSuite) TestConcurrentCreatesGetDistinctIDs() {
	ctx := context.Background()
	const creators = 10

	var wg sync.WaitGroup
	ids := make(chan int64, creators)
	for range creators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.store.CreateImport(ctx, sampleCitizens())
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		s.False(seen[id], "import id %d handed out twice", id)
		seen[id] = true
	}
	s.Len(seen, creators)
}

func (s *contractSuite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}
