package repository

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"LeadGrid-App/internal/domain/repository"
	"LeadGrid-App/internal/infrastructure/database"
)

func TestSupabaseDiscoveryRepository(t *testing.T) {
	url := os.Getenv("TEST_SUPABASE_URL")
	key := os.Getenv("TEST_SUPABASE_ANON_KEY")
	if url == "" || key == "" {
		t.Skip("TEST_SUPABASE_URL / TEST_SUPABASE_ANON_KEY が設定されていません。Supabase統合テストをスキップします。")
	}

	client, err := database.NewSupabaseClient(url, key)
	require.NoError(t, err)
	require.NoError(t, client.HealthCheck())

	runDiscoveryRepositoryContract(t, func(t *testing.T) repository.DiscoveryRepository {
		return NewSupabaseDiscoveryRepository(client)
	})
}
