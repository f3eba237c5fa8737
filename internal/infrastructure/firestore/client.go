package firestore

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type FirestoreClient struct {
	client *firestore.Client
}

// NewFirestoreClient FIRESTORE_PROJECT_ID のプロジェクトに接続する
//
// GOOGLE_APPLICATION_CREDENTIALS のファイルがあればそれを使い、
// 無ければ Application Default Credentials で接続する。
func NewFirestoreClient(ctx context.Context, projectID string, logger *zap.SugaredLogger) (*FirestoreClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID環境変数が設定されていません")
	}

	var opts []option.ClientOption
	credentialsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if os.Getenv("K_SERVICE") != "" {
		logger.Infof("☁️ Cloud Run環境: デフォルト認証を使用")
	} else if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			logger.Warnf("⚠️ Credentials file not found: %s, trying with default authentication", credentialsFile)
		} else {
			logger.Infof("📄 Using credentials file: %s", credentialsFile)
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		}
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	logger.Infof("✅ Firestore client initialized for project: %s", projectID)

	return &FirestoreClient{client: client}, nil
}

func (fc *FirestoreClient) Close() error {
	return fc.client.Close()
}

func (fc *FirestoreClient) GetClient() *firestore.Client {
	return fc.client
}
