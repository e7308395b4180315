package service

import (
	"github.com/beldeveloper/deploy-lego/service/adapter"
	"github.com/beldeveloper/deploy-lego/service/credentials"
	"github.com/beldeveloper/deploy-lego/service/marshaller"
	"github.com/beldeveloper/deploy-lego/service/orchestrator"
	"github.com/beldeveloper/deploy-lego/service/os"
	"github.com/beldeveloper/deploy-lego/service/store"
	"github.com/beldeveloper/deploy-lego/service/validation"
)

// Container keeps all services in one place.
type Container struct {
	Adapters     adapter.Registry
	Orchestrator orchestrator.Service
	Store        store.Service
	Credentials  credentials.Resolver
	Validation   validation.Service
	Marshaller   marshaller.Service
	OS           os.Service
}
