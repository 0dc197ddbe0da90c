package ucdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/bramvdbogaerde/go-scp/auth"
	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

var ErrNoSSHTransport = errors.New("file retrieval requires an SSH transport")

func (d *DeviceConnection) sshConn() (*SSHConnModel, error) {
	conn, ok := d.Connection.(*SSHConnModel)
	if !ok || conn.Client == nil {
		return nil, ErrNoSSHTransport
	}
	return conn, nil
}

// NewSFTPClient creates a new SFTP client using the existing SSH connection.
func (d *DeviceConnection) NewSFTPClient() (*sftp.Client, error) {
	conn, err := d.sshConn()
	if err != nil {
		return nil, err
	}
	sftpClient, err := sftp.NewClient(conn.Client)
	if err != nil {
		log.Errorf("Failed to create SFTP client: %v", err)
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return sftpClient, nil
}

// RetrieveFile downloads a file from the device using SFTP, falling back to
// SFTP read-all and then to SCP. IOS only serves files such as
// system:running-config over SCP, so the last step is the usual winner there.
func (d *DeviceConnection) RetrieveFile(remoteFile, localFile string) error {
	if _, err := d.sshConn(); err != nil {
		return err
	}
	sftpClient, err := d.NewSFTPClient()
	if err != nil {
		log.Infof("Failed to establish SFTP session. Fallback to SCP..")
		return d.RetrieveFileUsingSCP(remoteFile, localFile)
	}
	defer sftpClient.Close()

	remoteFileReader, err := sftpClient.Open(remoteFile)
	if err != nil {
		log.Infof("Failed to open remote file '%s' over SFTP: %v. Fallback to SCP..", remoteFile, err)
		return d.RetrieveFileUsingSCP(remoteFile, localFile)
	}
	defer remoteFileReader.Close()

	localFileWriter, err := os.Create(localFile)
	if err != nil {
		log.Errorf("Failed to create local file '%s': %v", localFile, err)
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer localFileWriter.Close()

	if _, err := io.Copy(localFileWriter, remoteFileReader); err != nil {
		log.Errorf("Failed to copy file from '%s' to '%s': %v", remoteFile, localFile, err)
		log.Infof("Fallback to SFTP with io.ReadAll method..")
		return d.RetrieveFileReadAll(remoteFile, localFile)
	}

	log.Infof("File retrieved successfully from '%s' to '%s'", remoteFile, localFile)
	return nil
}

// RetrieveFileReadAll downloads a file using SFTP ReadAll.
func (d *DeviceConnection) RetrieveFileReadAll(remoteFile, localFile string) error {
	sftpClient, err := d.NewSFTPClient()
	if err != nil {
		log.Infof("Failed to establish SFTP session. Fallback to SCP..")
		return d.RetrieveFileUsingSCP(remoteFile, localFile)
	}
	defer sftpClient.Close()

	remoteFileReader, err := sftpClient.Open(remoteFile)
	if err != nil {
		log.Errorf("Failed to open remote file '%s': %v", remoteFile, err)
		return d.RetrieveFileUsingSCP(remoteFile, localFile)
	}
	defer remoteFileReader.Close()

	data, err := io.ReadAll(remoteFileReader)
	if err != nil {
		log.Errorf("Failed to read remote file: %v", err)
		return d.RetrieveFileUsingSCP(remoteFile, localFile)
	}

	if err := os.WriteFile(localFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write local file: %w", err)
	}
	log.Infof("File retrieved successfully using SFTP ReadAll method from '%s' to '%s'", remoteFile, localFile)
	return nil
}

// RetrieveFileUsingSCP downloads a file from the device using SCP.
func (d *DeviceConnection) RetrieveFileUsingSCP(remoteFile, localFile string) error {
	conn, err := d.sshConn()
	if err != nil {
		return err
	}
	sshConfig, err := auth.PasswordKey(conn.Username, conn.Password, ssh.InsecureIgnoreHostKey())
	if err != nil {
		return fmt.Errorf("failed to create SSH config: %w", err)
	}
	sshConfig.Ciphers = append(sshConfig.Ciphers, ciphers...)
	sshConfig.KeyExchanges = append(sshConfig.KeyExchanges, keyExchanges...)

	client := scp.NewClient(conn.Addr, &sshConfig)
	if err := client.Connect(); err != nil {
		log.Errorf("Failed to connect via SCP: %v", err)
		return fmt.Errorf("failed to connect via SCP: %w", err)
	}
	defer client.Close()

	localFileWriter, err := os.Create(localFile)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer localFileWriter.Close()

	if err := client.CopyFromRemote(context.Background(), localFileWriter, remoteFile); err != nil {
		log.Errorf("Failed to copy file via SCP from '%s' to '%s': %v", remoteFile, localFile, err)
		return fmt.Errorf("failed to copy file via SCP: %w", err)
	}

	log.Infof("File retrieved successfully via SCP from '%s' to '%s'", remoteFile, localFile)
	return nil
}
