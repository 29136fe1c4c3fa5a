package platform

import (
	"fmt"

	"github.com/shopsight/backend/internal/domain/export"
)

// Per-kind field selections. The shapes are fixed: the platform computes the
// export out-of-band, so there is nothing to parameterize besides the kind.
const (
	productBulkQuery = `{
  products {
    edges {
      node {
        id
        title
        vendor
        productType
        status
        variants {
          edges {
            node {
              id
              title
              sku
              price
              inventoryQuantity
            }
          }
        }
      }
    }
  }
}`

	orderBulkQuery = `{
  orders {
    edges {
      node {
        id
        name
        processedAt
        currencyCode
        totalPriceSet { shopMoney { amount } }
        lineItems {
          edges {
            node {
              id
              title
              quantity
              sku
            }
          }
        }
      }
    }
  }
}`

	customerBulkQuery = `{
  customers {
    edges {
      node {
        id
        email
        firstName
        lastName
        phone
        amountSpent { amount }
        orders {
          edges {
            node {
              id
              name
              processedAt
              currencyCode
              totalPriceSet { shopMoney { amount } }
              lineItems {
                edges {
                  node {
                    id
                    title
                    quantity
                    sku
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`
)

const submitMutation = `mutation bulkOperationRunQuery($query: String!) {
  bulkOperationRunQuery(query: $query) {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}`

const pollQuery = `query bulkOperation($id: ID!) {
  node(id: $id) {
    ... on BulkOperation {
      id
      status
      errorCode
      url
      objectCount
      fileSize
    }
  }
}`

// bulkQueryForKind returns the fixed export document for one entity kind
func bulkQueryForKind(kind export.EntityKind) (string, error) {
	switch kind {
	case export.KindProduct:
		return productBulkQuery, nil
	case export.KindOrder:
		return orderBulkQuery, nil
	case export.KindCustomer:
		return customerBulkQuery, nil
	}
	return "", fmt.Errorf("no export query for entity kind %q", kind)
}
