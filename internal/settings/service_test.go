package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

func newService(t *testing.T, mp config.MercadoPagoConfig) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)), mp)
	require.NoError(t, err)
	return svc
}

func TestGoalDefaultsAndUpsert(t *testing.T) {
	svc := newService(t, config.MercadoPagoConfig{})
	ctx := context.Background()

	goal, err := svc.Goal(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultGoalCents, goal.GoalCents)

	_, err = svc.UpdateGoal(ctx, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateGoal(ctx, 200000)
	require.NoError(t, err)
	_, err = svc.UpdateGoal(ctx, 250000)
	require.NoError(t, err)

	goal, err = svc.Goal(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 250000, goal.GoalCents)
}

func TestStoryKeepsPhotoWhenOmitted(t *testing.T) {
	svc := newService(t, config.MercadoPagoConfig{})
	ctx := context.Background()

	story, err := svc.Story(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultStory, story.Content)

	photo := "https://cdn/couple.jpg"
	_, err = svc.UpdateStory(ctx, "Nossa história", &photo)
	require.NoError(t, err)

	_, err = svc.UpdateStory(ctx, " Nova versão ", nil)
	require.NoError(t, err)

	story, err = svc.Story(ctx)
	require.NoError(t, err)
	require.Equal(t, "Nova versão", story.Content)
	require.NotNil(t, story.CouplePhoto)
	require.Equal(t, photo, *story.CouplePhoto)
}

func TestTemplateDefaults(t *testing.T) {
	svc := newService(t, config.MercadoPagoConfig{})
	tpl, err := svc.Template(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultTemplateSubject, tpl.Subject)
	require.Contains(t, tpl.Body, "{{total_brl}}")

	_, err = svc.UpdateTemplate(context.Background(), "", "body")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCredentialsPreferDatabaseOverEnv(t *testing.T) {
	svc := newService(t, config.MercadoPagoConfig{AccessToken: "env-token", WebhookSecret: "env-secret"})
	ctx := context.Background()

	token, err := svc.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "env-token", token)

	status, err := svc.MercadoPagoStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, "env", status.Source)
	require.True(t, status.HasAccessToken)

	dbToken := " db-token "
	_, err = svc.UpdateMercadoPago(ctx, MercadoPagoInput{AccessToken: &dbToken})
	require.NoError(t, err)

	token, err = svc.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "db-token", token)

	secret, err := svc.WebhookSecret(ctx)
	require.NoError(t, err)
	require.Equal(t, "env-secret", secret)
}
