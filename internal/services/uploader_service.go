package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"communication-service/internal/models"

	"github.com/jlaffaye/ftp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Uploader pushes a generated file to the storage target described by a
// StorageConfig row.
type Uploader interface {
	Upload(storage models.StorageConfig, r io.Reader, size int64, remoteName string) error
}

// UploaderService is the production Uploader, speaking S3, FTP and SFTP.
type UploaderService struct{}

func (s *UploaderService) Upload(storage models.StorageConfig, r io.Reader, size int64, remoteName string) error {
	cfg := map[string]interface{}(storage.Config)

	switch storage.Type {
	case models.StorageTypeS3:
		return s.uploadS3(cfg, r, size, remoteName)
	case models.StorageTypeFTP:
		return s.uploadFTP(cfg, r, remoteName)
	case models.StorageTypeSFTP:
		return s.uploadSFTP(cfg, r, remoteName)
	default:
		return fmt.Errorf("storage type %s not implemented yet", storage.Type)
	}
}

// --- S3 ---
func (s *UploaderService) uploadS3(cfg map[string]interface{}, r io.Reader, size int64, objectName string) error {
	endpoint, _ := cfg["endpoint"].(string)
	accessKey, _ := cfg["access_key"].(string)
	secretKey, _ := cfg["secret_key"].(string)
	bucket, _ := cfg["bucket"].(string)
	region, _ := cfg["region"].(string)
	prefix, _ := cfg["prefix"].(string)

	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: true,
		Region: region,
	})
	if err != nil {
		return err
	}

	// S3 keys use forward slashes; trim so the prefix never doubles up
	finalObjectName := objectName
	if prefix != "" {
		cleanPrefix := strings.TrimSuffix(prefix, "/")
		finalObjectName = fmt.Sprintf("%s/%s", cleanPrefix, objectName)
	}

	_, err = minioClient.PutObject(context.Background(), bucket, finalObjectName, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// --- FTP ---
func (s *UploaderService) uploadFTP(cfg map[string]interface{}, r io.Reader, fileName string) error {
	host, _ := cfg["host"].(string)
	port := "21"
	if p, ok := cfg["port"].(float64); ok {
		port = fmt.Sprintf("%.0f", p)
	} else if p, ok := cfg["port"].(string); ok {
		port = p
	}

	user, _ := cfg["user"].(string)
	pass, _ := cfg["password"].(string)
	path, _ := cfg["path"].(string)

	c, err := ftp.Dial(fmt.Sprintf("%s:%s", host, port), ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return err
	}
	defer c.Quit()

	if err := c.Login(user, pass); err != nil {
		return err
	}

	if path != "" {
		_ = c.MakeDir(path)
		if err := c.ChangeDir(path); err != nil {
			return fmt.Errorf("failed to change ftp dir: %v", err)
		}
	}

	return c.Stor(fileName, r)
}

// --- SFTP ---
func (s *UploaderService) uploadSFTP(cfg map[string]interface{}, r io.Reader, fileName string) error {
	host, _ := cfg["host"].(string)
	port := "22"
	if p, ok := cfg["port"].(float64); ok {
		port = fmt.Sprintf("%.0f", p)
	} else if p, ok := cfg["port"].(string); ok {
		port = p
	}

	user, _ := cfg["user"].(string)
	pass, _ := cfg["password"].(string)
	key, _ := cfg["private_key"].(string)
	remotePath, _ := cfg["path"].(string)

	var authMethods []ssh.AuthMethod
	if key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err == nil {
			authMethods = append(authMethods, ssh.PublicKeys(signer))
		}
	}
	if pass != "" {
		authMethods = append(authMethods, ssh.Password(pass))
	}

	sshConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	sshClient, err := ssh.Dial("tcp", fmt.Sprintf("%s:%s", host, port), sshConfig)
	if err != nil {
		return err
	}
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	finalPath := fileName
	if remotePath != "" {
		_ = sftpClient.MkdirAll(remotePath)
		finalPath = filepath.Join(remotePath, fileName)
	}

	dstFile, err := sftpClient.Create(finalPath)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = dstFile.ReadFrom(r)
	return err
}
