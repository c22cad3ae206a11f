package catalog

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"concierge/pkg/config"
)

func TestUpdateMealsReplacesOnlyMeals(t *testing.T) {
	t.Parallel()

	c := New(Default())
	before := c.Snapshot()

	require.NoError(t, c.UpdateMeals("A", "B", "C"))

	after := c.Snapshot()
	require.Equal(t, Meals{Breakfast: "A", Lunch: "B", Dinner: "C"}, after.Meals)
	require.Equal(t, before.Activities, after.Activities)
	require.Equal(t, before.Restaurants, after.Restaurants)
	require.Equal(t, before.Plans, after.Plans)
}

func TestUpdateMealsRejectsPartialUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                     string
		breakfast, lunch, dinner string
	}{
		{name: "missing breakfast", lunch: "B", dinner: "C"},
		{name: "missing lunch", breakfast: "A", dinner: "C"},
		{name: "blank dinner", breakfast: "A", lunch: "B", dinner: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Default())
			err := c.UpdateMeals(tt.breakfast, tt.lunch, tt.dinner)
			if !errors.Is(err, ErrIncompleteMeals) {
				t.Fatalf("UpdateMeals error = %v, want ErrIncompleteMeals", err)
			}
			if got := c.Snapshot().Meals; got != Default().Meals {
				t.Fatalf("meals mutated after rejected update: %+v", got)
			}
		})
	}
}

func TestSnapshotIsDetachedFromCatalog(t *testing.T) {
	t.Parallel()

	c := New(Default())
	snap := c.Snapshot()
	snap.Activities[0] = "changed"
	snap.Plans = append(snap.Plans, "extra")

	fresh := c.Snapshot()
	require.Equal(t, Default().Activities[0], fresh.Activities[0])
	require.Len(t, fresh.Plans, len(Default().Plans))
}

func TestConcurrentUpdateNeverMixesMealSets(t *testing.T) {
	t.Parallel()

	c := New(Content{Meals: Meals{Breakfast: "old-0", Lunch: "old-0", Dinner: "old-0"}})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mixed := make(chan Meals, 1)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				meals := c.Snapshot().Meals
				if meals.Breakfast != meals.Lunch || meals.Lunch != meals.Dinner {
					select {
					case mixed <- meals:
					default:
					}
					return
				}
			}
		}()
	}

	for i := 1; i <= 2000; i++ {
		tag := fmt.Sprintf("set-%d", i)
		require.NoError(t, c.UpdateMeals(tag, tag, tag))
	}
	close(stop)
	wg.Wait()

	select {
	case meals := <-mixed:
		t.Fatalf("observed mixed meal set: %+v", meals)
	default:
	}
}

func TestNewFromConfigAppliesSeedOverrides(t *testing.T) {
	t.Parallel()

	c := NewFromConfig(config.HotelConfig{Catalog: &config.CatalogSeed{
		Breakfast:  " Arepas ",
		Activities: []string{" Surf ", ""},
	}})

	got := c.Snapshot()
	require.Equal(t, "Arepas", got.Meals.Breakfast)
	require.Equal(t, Default().Meals.Lunch, got.Meals.Lunch)
	require.Equal(t, []string{"Surf"}, got.Activities)
	require.Equal(t, Default().Restaurants, got.Restaurants)
}

func TestNewFromConfigWithoutSeed(t *testing.T) {
	t.Parallel()

	got := NewFromConfig(config.HotelConfig{}).Snapshot()
	require.Equal(t, Default(), got)
}
